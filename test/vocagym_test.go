package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const authTokenHeader = "X-VOCAGYM-TOKEN"

func (s *IntegrationTestSuite) request(method, path, token, body string) (int, []byte) {
	var reqBody io.Reader
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, serverEndpoint+path, reqBody)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set(authTokenHeader, token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, respBody
}

func (s *IntegrationTestSuite) registerUser(username string) (userID int, token string) {
	code, body := s.request(http.MethodPost, "/auth/register", "", fmt.Sprintf(
		`{"username": %q, "email": "%s@example.com", "password": "sup3rsecret", "displayName": "Test User",
			"gender": "other", "height": 180, "weight": 80, "birthDate": "1991-02-03T00:00:00Z"}`,
		username, username,
	))
	s.Require().Equal(http.StatusCreated, code, string(body))

	var resp struct {
		User struct {
			ID int `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Require().NotEmpty(resp.Token)
	return resp.User.ID, resp.Token
}

func (s *IntegrationTestSuite) TestVersion() {
	code, body := s.request(http.MethodGet, "/version", "", "")
	s.Equal(http.StatusOK, code)
	s.Equal("test-version-info", string(body))
}

func (s *IntegrationTestSuite) TestAuthFlow() {
	_, token := s.registerUser("authflow")

	// username now taken
	code, body := s.request(http.MethodGet, "/auth/check-username?username=authflow", "", "")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"available": false}`, string(body))

	// login with the email, mixed case
	code, body = s.request(http.MethodPost, "/auth/login", "",
		`{"email": "AuthFlow@example.com", "password": "sup3rsecret"}`)
	s.Require().Equal(http.StatusOK, code, string(body))

	// wrong password
	code, _ = s.request(http.MethodPost, "/auth/login", "",
		`{"email": "authflow@example.com", "password": "wrong-password"}`)
	s.Equal(http.StatusUnauthorized, code)

	// profile needs the token
	code, _ = s.request(http.MethodGet, "/me/profile", "", "")
	s.Equal(http.StatusUnauthorized, code)

	code, body = s.request(http.MethodGet, "/me/profile", token, "")
	s.Require().Equal(http.StatusOK, code)
	s.Contains(string(body), `"username":"authflow"`)

	// logout kills the session
	code, _ = s.request(http.MethodPost, "/auth/logout", token, "")
	s.Require().Equal(http.StatusOK, code)
	code, _ = s.request(http.MethodGet, "/me/profile", token, "")
	s.Equal(http.StatusUnauthorized, code)
}

func (s *IntegrationTestSuite) TestWorkoutFlow() {
	_, token := s.registerUser("lifter")

	// the catalog is public
	code, body := s.request(http.MethodGet, "/exercises?lang=fr", "", "")
	s.Require().Equal(http.StatusOK, code)
	s.Contains(string(body), "Développé couché")

	// the canned completion api detects a 5x80 squat in anything
	code, body = s.request(http.MethodPost, "/detect", token,
		`{"text": "cinq squats à quatre-vingts kilos"}`)
	s.Require().Equal(http.StatusOK, code, string(body))
	var detection struct {
		Exercise struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"exercise"`
		Reps   int     `json:"reps"`
		Weight float64 `json:"weight"`
	}
	s.Require().NoError(json.Unmarshal(body, &detection))
	s.Equal("Squat", detection.Exercise.Name)
	s.Equal(5, detection.Reps)

	// log a session, then fill it with the detected exercise
	code, body = s.request(http.MethodPost, "/sessions", token, `{"name": "leg day"}`)
	s.Require().Equal(http.StatusCreated, code, string(body))
	var session struct {
		ID int `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &session))

	code, body = s.request(http.MethodPut, fmt.Sprintf("/sessions/%d", session.ID), token, fmt.Sprintf(
		`{"sets": [
			{"exerciseId": %d, "reps": 5, "weight": 80, "order": 0},
			{"exerciseId": %d, "reps": 5, "weight": 85, "order": 1}
		]}`, detection.Exercise.ID, detection.Exercise.ID))
	s.Require().Equal(http.StatusOK, code, string(body))

	code, body = s.request(http.MethodGet, "/sessions?limit=5", token, "")
	s.Require().Equal(http.StatusOK, code)
	s.Contains(string(body), `"total":1`)

	// replace the sets, then check performance picks up the new top set
	code, body = s.request(http.MethodPut, fmt.Sprintf("/sessions/%d", session.ID), token,
		fmt.Sprintf(`{"sets": [{"exerciseId": %d, "reps": 3, "weight": 90, "order": 0}]}`, detection.Exercise.ID))
	s.Require().Equal(http.StatusOK, code, string(body))

	code, body = s.request(http.MethodGet, "/performance", token, "")
	s.Require().Equal(http.StatusOK, code)
	var overview struct {
		Exercises []struct {
			ExerciseName string `json:"exerciseName"`
			PRs          struct {
				MaxWeight float64 `json:"maxWeight"`
			} `json:"prs"`
		} `json:"exercises"`
		WeightEntries []struct {
			Weight float64 `json:"weight"`
		} `json:"weightEntries"`
	}
	s.Require().NoError(json.Unmarshal(body, &overview))
	s.Require().Len(overview.Exercises, 1)
	s.Equal("Squat", overview.Exercises[0].ExerciseName)
	s.Equal(90.0, overview.Exercises[0].PRs.MaxWeight)
	// the registration weight entry is there
	s.Require().Len(overview.WeightEntries, 1)
	s.Equal(80.0, overview.WeightEntries[0].Weight)
}

func (s *IntegrationTestSuite) TestPublicWall() {
	_, token := s.registerUser("wallguy")

	code, body := s.request(http.MethodPost, "/sessions", token, `{}`)
	s.Require().Equal(http.StatusCreated, code, string(body))
	var session struct {
		ID int `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(body, &session))

	code, body = s.request(http.MethodPut, fmt.Sprintf("/sessions/%d", session.ID), token,
		`{"sets": [{"exerciseId": 2, "reps": 5, "weight": 100, "order": 0}]}`)
	s.Require().Equal(http.StatusOK, code, string(body))

	// profile is private by default
	code, _ = s.request(http.MethodGet, "/gg/wallguy", "", "")
	s.Equal(http.StatusNotFound, code)

	code, body = s.request(http.MethodPatch, "/me/profile", token,
		`{"profilePublic": true, "prExerciseIds": [2]}`)
	s.Require().Equal(http.StatusOK, code, string(body))

	// wall is public now, username lookup is case-insensitive
	code, body = s.request(http.MethodGet, "/gg/WallGuy", "", "")
	s.Require().Equal(http.StatusOK, code)
	var wall struct {
		Username    string `json:"username"`
		LastSession *struct {
			Name       string `json:"name"`
			Highlights []struct {
				ExerciseName string  `json:"exerciseName"`
				Weight       float64 `json:"weight"`
			} `json:"highlights"`
		} `json:"lastSession"`
		PRs []struct {
			ExerciseName string  `json:"exerciseName"`
			MaxWeight    float64 `json:"maxWeight"`
			Estimated1RM float64 `json:"estimated1RM"`
		} `json:"prs"`
	}
	s.Require().NoError(json.Unmarshal(body, &wall))
	s.Equal("wallguy", wall.Username)

	s.Require().NotNil(wall.LastSession)
	s.Equal("Workout", wall.LastSession.Name)
	s.Require().Len(wall.LastSession.Highlights, 1)
	s.Equal("Squat", wall.LastSession.Highlights[0].ExerciseName)
	s.Equal(100.0, wall.LastSession.Highlights[0].Weight)

	s.Require().Len(wall.PRs, 1)
	s.Equal("Squat", wall.PRs[0].ExerciseName)
	s.Equal(100.0, wall.PRs[0].MaxWeight)
	// 100kg x 5 reps
	s.Equal(116.7, wall.PRs[0].Estimated1RM)

	// unknown user looks exactly like a private one
	code, _ = s.request(http.MethodGet, "/gg/nobody-here", "", "")
	s.Equal(http.StatusNotFound, code)
}
