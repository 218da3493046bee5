package e2e

import (
	"chat-relay/domain"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
)

type testProfileSuite struct {
	BaseHttpSuite
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, &testProfileSuite{})
}

func (s *testProfileSuite) TestCompleteProfileThenBeFound() {
	alice := s.Register("alice")
	bob := s.Register("bob")

	s.Run("Step 1: Profile starts with what was given at signup", func() {
		s.Step("Alice reads her own profile")
		var profile domain.Profile
		status := s.Call(http.MethodGet, "/api/auth/user-info", alice.Token, nil, &profile)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Equal(alice.Profile.ID, profile.ID)
		s.Require().Empty(profile.LastName)
	})

	s.Run("Step 2: Usernames cannot be taken twice", func() {
		s.Step("Bob tries to become alice")
		status := s.Call(http.MethodPost, "/api/auth/update-profile", bob.Token, map[string]any{
			"username": alice.Profile.Username, "firstName": "Bob", "lastName": "Builder",
		}, nil)
		s.Require().Equal(http.StatusConflict, status)
	})

	s.Run("Step 3: A completed profile is searchable", func() {
		s.Step("Bob completes his profile")
		var profile domain.Profile
		status := s.Call(http.MethodPost, "/api/auth/update-profile", bob.Token, map[string]any{
			"username": bob.Profile.Username, "firstName": "Bob", "lastName": "Builder", "color": 3,
		}, &profile)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Equal("Builder", profile.LastName)

		s.Step("Alice looks for him")
		var found struct {
			Contacts []domain.Profile `json:"contacts"`
		}
		status = s.Call(http.MethodPost, "/api/contacts/search", alice.Token, map[string]any{
			"searchTerm": bob.Profile.Email,
		}, &found)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Len(found.Contacts, 1)
		s.Require().Equal("Builder", found.Contacts[0].LastName)
	})
}
