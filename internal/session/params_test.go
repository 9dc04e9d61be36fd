package session_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidchat/backend/internal/models"
	"vidchat/backend/internal/session"
)

func TestParseCandidate(t *testing.T) {
	q := url.Values{}
	q.Set("id", "42")
	q.Set("gender", "female")
	q.Set("username", "ann")
	q.Set("isMobile", "true")
	q.Set("cameraOn", "false")

	u, err := session.ParseCandidate("conn-1", session.ParamsFromQuery(q))
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "conn-1", u.ConnID)
	assert.Equal(t, models.GenderFemale, u.Gender)
	assert.True(t, u.IsMobile)
	assert.False(t, u.CameraOn)
	assert.True(t, u.AudioOn, "missing flag means on")
}

func TestParseCandidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params session.ConnectParams
		fields []string
	}{
		{
			name:   "empty",
			params: session.ConnectParams{},
			fields: []string{"id", "gender", "username", "isMobile"},
		},
		{
			name:   "bad gender",
			params: session.ConnectParams{ID: "1", Gender: "other", Username: "x", IsMobile: "false"},
			fields: []string{"gender"},
		},
		{
			name:   "non numeric id",
			params: session.ConnectParams{ID: "abc", Gender: "male", Username: "x", IsMobile: "false"},
			fields: []string{"id"},
		},
		{
			name:   "bad mobile flag",
			params: session.ConnectParams{ID: "1", Gender: "male", Username: "x", IsMobile: "yes"},
			fields: []string{"isMobile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := session.ParseCandidate("c", tt.params)
			assert.Nil(t, u)

			var verr *session.ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}
}
