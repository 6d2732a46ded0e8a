package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
	"github.com/mgiraudeau/vocagym/pkg"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
)

const (
	sessionKeyPrefix = "vocagym::session::"
	tokenLength      = 35
)

// Service issues and validates session tokens backed by redis.
// A session value is stored as "<userID>:<createdAtUnix>" so that both
// the owner and the age of a token can be recovered from redis alone.
type Service struct {
	sessionTTL  time.Duration
	redisClient *redis.Client
}

func NewService(sessionTTL time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		sessionTTL:  sessionTTL,
		redisClient: redisClient,
	}
}

// Login creates a new session token for the given user.
func (s *Service) Login(ctx context.Context, userID int, createdAt time.Time) (token string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	token, err = pkg.GenerateRandomString(tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	sessionValue := fmt.Sprintf("%d:%d", userID, createdAt.Unix())
	if err := s.redisClient.Set(
		ctx,
		sessionKeyPrefix+token,
		sessionValue,
		s.sessionTTL,
	).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

// Logout destroys the session for the given token. Returns false when
// the token was not known in the first place.
func (s *Service) Logout(ctx context.Context, token string) (loggedOut bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.logout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	removed, err := s.redisClient.Del(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("remove session: %w", err)
	}

	return removed > 0, nil
}

// LoggedUserID returns the ID of the user owning the given token, or
// ErrNotLoggedIn when the token is unknown or expired.
func (s *Service) LoggedUserID(ctx context.Context, token string) (userID int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.loggedUserID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if token == "" {
		return 0, ErrNotLoggedIn
	}

	sessionValue, err := s.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotLoggedIn
		}
		return 0, fmt.Errorf("get session: %w", err)
	}

	userID, _, err = parseSessionValue(sessionValue)
	if err != nil {
		return 0, err
	}

	return userID, nil
}

// ScanAndClean walks all stored sessions and removes the ones older
// than the session TTL. Redis expiry already covers the common case,
// this is a safety net for sessions written without a TTL (e.g. by
// older versions or by hand).
func (s *Service) ScanAndClean(ctx context.Context) (removed int) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.scanAndClean")
	defer span.End()

	var cursor uint64
	for {
		keys, nextCursor, err := s.redisClient.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			log.Errorf("auth scan and clean, scan sessions: %s", err)
			return removed
		}

		for _, key := range keys {
			sessionValue, err := s.redisClient.Get(ctx, key).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					log.Errorf("auth scan and clean, get session [%s]: %s", key, err)
				}
				continue
			}

			_, createdAt, err := parseSessionValue(sessionValue)
			if err != nil {
				log.Errorf("auth scan and clean, session [%s]: %s", key, err)
				continue
			}

			if time.Since(createdAt) <= s.sessionTTL {
				continue
			}

			if err := s.redisClient.Del(ctx, key).Err(); err != nil {
				log.Errorf("auth scan and clean, remove session [%s]: %s", key, err)
				continue
			}
			removed++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		log.Debugf("auth scan and clean, removed %d stale sessions", removed)
	}
	return removed
}

func parseSessionValue(sessionValue string) (userID int, createdAt time.Time, err error) {
	parts := strings.SplitN(sessionValue, ":", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("malformed session value [%s]", sessionValue)
	}

	userID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session user id [%s]", parts[0])
	}

	createdAtUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session timestamp [%s]", parts[1])
	}

	return userID, time.Unix(createdAtUnix, 0), nil
}
