package slack

import (
	"net/http"

	"github.com/pkg/errors"
	slackapi "github.com/slack-go/slack"
)

var ErrNoSigningSecret = errors.New("signing secret is not configured")

// VerifyRequest checks the v0 request signature and the timestamp window. An
// empty secret rejects every request.
func VerifyRequest(secret string, header http.Header, body []byte) error {
	if secret == "" {
		return ErrNoSigningSecret
	}
	sv, err := slackapi.NewSecretsVerifier(header, secret)
	if err != nil {
		return errors.Wrap(err, "read signature headers")
	}
	if _, err := sv.Write(body); err != nil {
		return errors.Wrap(err, "hash body")
	}
	return errors.Wrap(sv.Ensure(), "verify signature")
}
