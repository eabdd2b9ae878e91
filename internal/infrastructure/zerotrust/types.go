package zerotrust

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// envelope is the common response wrapper of the platform API.
type envelope struct {
	Success    *bool           `json:"success"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *resultInfo     `json:"result_info"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
}

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexTime accepts RFC 3339 strings or unix seconds.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		f.Time = t
		return nil
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	f.Time = time.Unix(int64(secs), 0).UTC()
	return nil
}

type appTypeRecord struct {
	ID                flexID `json:"id"`
	Name              string `json:"name"`
	ApplicationTypeID int    `json:"application_type_id"`
}

type reviewStatusObject struct {
	ApprovedApps   []flexID `json:"approved_apps"`
	InReviewApps   []flexID `json:"in_review_apps"`
	UnapprovedApps []flexID `json:"unapproved_apps"`
}

type reviewStatusRow struct {
	ID     flexID `json:"id"`
	Status string `json:"status"`
}

// accessEventRecord tolerates the field names used by the gateway and
// the access-request log feeds.
type accessEventRecord struct {
	Timestamp      *flexTime `json:"timestamp"`
	Datetime       *flexTime `json:"datetime"`
	CreatedAt      *flexTime `json:"created_at"`
	GatewayAppID   flexID    `json:"gateway_app_id"`
	AppUID         flexID    `json:"app_uid"`
	GatewayAppName string    `json:"gateway_app_name"`
	AppName        string    `json:"app_name"`
	UserEmail      string    `json:"user_email"`
	Email          string    `json:"email"`
	BytesSent      int64     `json:"bytes_sent"`
}

func (r accessEventRecord) when() time.Time {
	for _, t := range []*flexTime{r.Timestamp, r.Datetime, r.CreatedAt} {
		if t != nil && !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func idsToStrings(ids []flexID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, string(id))
		}
	}
	return out
}
