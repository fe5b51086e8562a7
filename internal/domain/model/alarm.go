package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CloudWatch has emitted StateChangeTime in more than one shape.
var alarmTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// AlarmNotification is a CloudWatch alarm transition. Field names on the
// wire are kept as CloudWatch sends them.
type AlarmNotification struct {
	Name            string `json:"AlarmName"`
	Description     string `json:"AlarmDescription"`
	StateChangeTime string `json:"StateChangeTime"`
	Region          string `json:"Region"`
	Arn             string `json:"AlarmArn"`

	changedAt time.Time
}

// snsEnvelope covers alarms delivered through an SNS HTTP subscription.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// ParseAlarm decodes an alarm payload, unwrapping an SNS notification
// envelope when present. Unknown fields are ignored.
func ParseAlarm(body []byte) (AlarmNotification, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return AlarmNotification{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if env.Type == "Notification" && env.Message != "" {
		body = []byte(env.Message)
	}

	var a AlarmNotification
	if err := json.Unmarshal(body, &a); err != nil {
		return AlarmNotification{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := a.validate(); err != nil {
		return AlarmNotification{}, err
	}
	return a, nil
}

// ChangedAt is the parsed StateChangeTime.
func (a AlarmNotification) ChangedAt() time.Time { return a.changedAt }

func (a *AlarmNotification) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: AlarmName is empty", ErrInvalidAlarm)
	}
	if strings.TrimSpace(a.Arn) == "" {
		return fmt.Errorf("%w: AlarmArn is empty", ErrInvalidAlarm)
	}
	for _, layout := range alarmTimeLayouts {
		if t, err := time.Parse(layout, a.StateChangeTime); err == nil {
			a.changedAt = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: StateChangeTime %q is not a timestamp", ErrInvalidAlarm, a.StateChangeTime)
}
