package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushSubscriptionValidate(t *testing.T) {
	valid := PushSubscription{
		Endpoint: "https://push.example.com/send/abc",
		P256dh:   "p256",
		Auth:     "auth",
		UserID:   "u1",
	}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(s *PushSubscription){
		"no endpoint": func(s *PushSubscription) { s.Endpoint = "" },
		"no keys":     func(s *PushSubscription) { s.Auth = "" },
		"no user":     func(s *PushSubscription) { s.UserID = "" },
		"plain http":  func(s *PushSubscription) { s.Endpoint = "http://push.example.com/x" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := valid
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSubscription)
		})
	}
}
