package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/remy/pkg/errorsx"
)

// SMS sends timer-expiry alerts as text messages through the Twilio REST API.
type SMS struct {
	accountSID string
	authToken  string
	from       string
	to         string
}

func NewSMS(accountSID, authToken, from, to string) (*SMS, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	if from == "" || to == "" {
		return nil, errors.New("missing sms numbers")
	}
	return &SMS{accountSID: accountSID, authToken: authToken, from: from, to: to}, nil
}

func (s *SMS) TimerExpired(names []string) error {
	if len(names) == 0 {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: s.accountSID,
		Password: s.authToken,
	})
	params := &api.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(fmt.Sprintf("Kitchen timer finished: %s", strings.Join(names, ", ")))
	if _, err := client.Api.CreateMessage(params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonNotifySend)
	}
	return nil
}
