package rootmail_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superwerker/superwerker/internal/handlers/rootmail"
)

const (
	bucket    = "superwerker-rootmail"
	bucketARN = "arn:aws:s3:::superwerker-rootmail"
	recipient = "root+8f14e45f@aws.example.com"
)

func textMail(subject, body string) string {
	return "From: no-reply@aws.amazon.com\r\n" +
		"To: " + recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
}

func htmlMail(subject, body string) string {
	return "From: no-reply@aws.amazon.com\r\n" +
		"To: " + recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
}

type fakeObjects struct {
	mails map[string]string
	keys  []string
}

func (f *fakeObjects) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	f.keys = append(f.keys, key)
	mail, ok := f.mails[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(mail))}, nil
}

type fakeOps struct {
	parameters []*ssm.PutParameterInput
	opsItems   []*ssm.CreateOpsItemInput
}

func (f *fakeOps) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.parameters = append(f.parameters, params)
	return &ssm.PutParameterOutput{}, nil
}

func (f *fakeOps) CreateOpsItem(_ context.Context, params *ssm.CreateOpsItemInput, _ ...func(*ssm.Options)) (*ssm.CreateOpsItemOutput, error) {
	f.opsItems = append(f.opsItems, params)
	return &ssm.CreateOpsItemOutput{OpsItemId: aws.String("oi-1")}, nil
}

func record(messageID string, verdicts ...string) events.SimpleEmailRecord {
	status := func(i int) events.SimpleEmailVerdict {
		if i < len(verdicts) {
			return events.SimpleEmailVerdict{Status: verdicts[i]}
		}
		return events.SimpleEmailVerdict{Status: "PASS"}
	}
	return events.SimpleEmailRecord{SES: events.SimpleEmailService{
		Mail: events.SimpleEmailMessage{MessageID: messageID, Destination: []string{recipient}},
		Receipt: events.SimpleEmailReceipt{
			DKIMVerdict:  status(0),
			SpamVerdict:  status(1),
			SPFVerdict:   status(2),
			VirusVerdict: status(3),
		},
	}}
}

func TestHandle(t *testing.T) {
	testCases := []struct {
		Name              string
		Mail              string
		Record            events.SimpleEmailRecord
		ExpectedFetches   int
		ExpectedOpsItems  int
		ExpectedParameter bool
		ExpectErr         bool
	}{
		{Name: "ops item from text mail", Mail: textMail("Your invoice", "Hello root user"), Record: record("m-1"), ExpectedFetches: 1, ExpectedOpsItems: 1},
		{Name: "spam verdict skips gtube", Mail: textMail("GTUBE", "XJS*C4JDBQADN1.NSBN3*2IDNEN*GTUBE-STANDARD-ANTI-UBE-TEST-EMAIL*C.34X"), Record: record("m-1", "PASS", "FAIL")},
		{Name: "virus verdict skips eicar", Mail: textMail("EICAR", "X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*"), Record: record("m-1", "PASS", "PASS", "PASS", "FAIL")},
		{Name: "gray dkim verdict skips", Mail: textMail("Hi", "Hi"), Record: record("m-1", "GRAY")},
		{Name: "welcome mail is filtered", Mail: textMail("Welcome to Amazon Web Services", "Welcome"), Record: record("m-1"), ExpectedFetches: 1},
		{Name: "account ready mail is filtered", Mail: textMail("Your AWS Account is Ready - Get Started Now", "Ready"), Record: record("m-1"), ExpectedFetches: 1},
		{Name: "mail without subject", Mail: "From: a@example.com\r\nContent-Type: text/plain\r\n\r\nbody\r\n", Record: record("m-1"), ExpectedFetches: 1},
		{
			Name:              "password assistance stores reset link",
			Mail:              htmlMail(rootmail.PasswordAssistanceSubject, "<p>Reset: https://signin.aws.amazon.com/resetpassword?token=abc<br>Thanks</p>"),
			Record:            record("m-1"),
			ExpectedFetches:   1,
			ExpectedParameter: true,
		},
		{Name: "missing object", Record: record("m-2"), ExpectedFetches: 1, ExpectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			objects := &fakeObjects{mails: map[string]string{"RootMail/m-1": tc.Mail}}
			ops := &fakeOps{}
			h := rootmail.New(objects, ops, bucket, bucketARN)

			err := h.Handle(context.Background(), events.SimpleEmailEvent{Records: []events.SimpleEmailRecord{tc.Record}})
			if tc.ExpectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, objects.keys, tc.ExpectedFetches)
			assert.Len(t, ops.opsItems, tc.ExpectedOpsItems)
			assert.Equal(t, tc.ExpectedParameter, len(ops.parameters) == 1)
		})
	}
}

func TestOpsItem(t *testing.T) {
	objects := &fakeObjects{mails: map[string]string{"RootMail/m-1": textMail("Your invoice", strings.Repeat("a", 2000))}}
	ops := &fakeOps{}
	h := rootmail.New(objects, ops, bucket, bucketARN)

	require.NoError(t, h.Handle(context.Background(), events.SimpleEmailEvent{Records: []events.SimpleEmailRecord{record("m-1")}}))
	require.Len(t, ops.opsItems, 1)

	item := ops.opsItems[0]
	assert.Equal(t, "Your invoice", aws.ToString(item.Title))
	assert.Equal(t, recipient, aws.ToString(item.Source))
	assert.Equal(t, strings.Repeat("a", 1020)+" ...", aws.ToString(item.Description))
	assert.JSONEq(t, `{"dedupString":"m-1"}`, aws.ToString(item.OperationalData["/aws/dedup"].Value))
	assert.JSONEq(t, `[{"arn":"arn:aws:s3:::superwerker-rootmail/RootMail/m-1"}]`, aws.ToString(item.OperationalData["/aws/resources"].Value))
	assert.Equal(t, ssmtypes.OpsItemDataTypeSearchableString, item.OperationalData["/aws/dedup"].Type)
}

func TestPasswordResetParameter(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	objects := &fakeObjects{mails: map[string]string{"RootMail/m-1": htmlMail(rootmail.PasswordAssistanceSubject,
		"<p>Reset: https://signin.aws.amazon.com/resetpassword?token=abc<br>Thanks</p>")}}
	ops := &fakeOps{}
	h := rootmail.New(objects, ops, bucket, bucketARN, rootmail.WithClock(func() time.Time { return now }))

	require.NoError(t, h.Handle(context.Background(), events.SimpleEmailEvent{Records: []events.SimpleEmailRecord{record("m-1")}}))
	require.Len(t, ops.parameters, 1)
	assert.Empty(t, ops.opsItems)

	p := ops.parameters[0]
	assert.Equal(t, "/superwerker/rootmail/pw_reset_link/8f14e45f", aws.ToString(p.Name))
	assert.Equal(t, "https://signin.aws.amazon.com/resetpassword?token=abc", aws.ToString(p.Value))
	assert.Equal(t, ssmtypes.ParameterTierAdvanced, p.Tier)
	assert.True(t, aws.ToBool(p.Overwrite))

	var policies []map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(p.Policies)), &policies))
	require.Len(t, policies, 1)
	assert.Equal(t, "Expiration", policies[0]["Type"])
	assert.Equal(t, map[string]any{"Timestamp": "2024-05-01T12:10:00Z"}, policies[0]["Attributes"])
}

func TestPasswordResetWithoutToken(t *testing.T) {
	objects := &fakeObjects{mails: map[string]string{"RootMail/m-1": htmlMail(rootmail.PasswordAssistanceSubject,
		"<p>Reset: https://signin.aws.amazon.com/resetpassword?token=abc<br>Thanks</p>")}}
	ops := &fakeOps{}
	h := rootmail.New(objects, ops, bucket, bucketARN)

	r := record("m-1")
	r.SES.Mail.Destination = []string{"admin@aws.example.com"}
	require.NoError(t, h.Handle(context.Background(), events.SimpleEmailEvent{Records: []events.SimpleEmailRecord{r}}))
	assert.Empty(t, ops.parameters)
	assert.Empty(t, ops.opsItems)
}

func TestToken(t *testing.T) {
	testCases := []struct {
		Name       string
		Address    string
		Expected   string
		ExpectedOK bool
	}{
		{Name: "root address", Address: "root+abc-123@aws.example.com", Expected: "abc-123", ExpectedOK: true},
		{Name: "plain address", Address: "admin@aws.example.com"},
		{Name: "empty token", Address: "root+@aws.example.com"},
		{Name: "prefixed local part", Address: "xroot+abc@aws.example.com"},
		{Name: "no destination", Address: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			token, ok := rootmail.Token(tc.Address)
			assert.Equal(t, tc.ExpectedOK, ok)
			if tc.ExpectedOK {
				assert.Equal(t, tc.Expected, token)
			}
		})
	}
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "https://signin.aws.amazon.com/resetpassword?token=x", rootmail.ResetLink("Go to https://signin.aws.amazon.com/resetpassword?token=x<br>"))
	assert.Equal(t, "no password reset link", rootmail.ResetLink("<p>nothing</p>"))
}
