// Package console builds federated AWS console sign-in URLs.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/superwerker/superwerker/internal/helpers"
)

const (
	DefaultEndpoint = "https://signin.aws.amazon.com/federation"

	// federationPolicy grants the federated user everything the caller may do.
	federationPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"*","Resource":"*"}]}`
)

// FederationAPI issues temporary credentials for long-term IAM user credentials.
type FederationAPI interface {
	GetFederationToken(ctx context.Context, params *sts.GetFederationTokenInput, optFns ...func(*sts.Options)) (*sts.GetFederationTokenOutput, error)
}

// SigninError is returned when the federation endpoint does not issue a sign-in token.
type SigninError struct {
	StatusCode int
}

func (e *SigninError) Error() string {
	return fmt.Sprintf("failed to get federation sign-in token: status %d", e.StatusCode)
}

type session struct {
	SessionID    string `json:"sessionId"`
	SessionKey   string `json:"sessionKey"`
	SessionToken string `json:"sessionToken"`
}

type Builder struct {
	credentials aws.CredentialsProvider
	federation  FederationAPI
	http        *retryablehttp.Client
	endpoint    string
	destination string
	issuer      string
	duration    time.Duration
	logger      *slog.Logger
}

type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.With("component", "console")
	}
}

func WithEndpoint(endpoint string) Option {
	return func(b *Builder) {
		b.endpoint = endpoint
	}
}

func WithDestination(destination string) Option {
	return func(b *Builder) {
		b.destination = destination
	}
}

func WithIssuer(issuer string) Option {
	return func(b *Builder) {
		b.issuer = issuer
	}
}

func WithSessionDuration(d time.Duration) Option {
	return func(b *Builder) {
		b.duration = d
	}
}

func New(credentials aws.CredentialsProvider, federation FederationAPI, opts ...Option) *Builder {
	_inst := &Builder{
		credentials: credentials,
		federation:  federation,
		http:        retryablehttp.NewClient(),
		endpoint:    DefaultEndpoint,
		destination: "https://console.aws.amazon.com/",
		issuer:      "superwerker",
		duration:    12 * time.Hour,
		logger:      helpers.NewNoopLogger(),
	}
	_inst.http.Logger = nil
	_inst.http.RetryMax = 3
	for _, opt := range opts {
		opt(_inst)
	}
	return _inst
}

// session returns temporary credentials usable for federation. Long-term credentials
// are exchanged through GetFederationToken.
func (b *Builder) session(ctx context.Context) (session, error) {
	creds, err := b.credentials.Retrieve(ctx)
	if err != nil {
		return session{}, errors.Wrap(err, "failed to retrieve credentials")
	}
	if creds.SessionToken != "" {
		return session{SessionID: creds.AccessKeyID, SessionKey: creds.SecretAccessKey, SessionToken: creds.SessionToken}, nil
	}

	b.logger.Debug("exchanging long-term credentials for a federation token...")
	out, err := b.federation.GetFederationToken(ctx, &sts.GetFederationTokenInput{
		Name:            aws.String(b.issuer),
		Policy:          aws.String(federationPolicy),
		DurationSeconds: aws.Int32(int32(b.duration.Seconds())),
	})
	if err != nil {
		return session{}, errors.Wrap(err, "failed to get federation token")
	}
	return session{
		SessionID:    aws.ToString(out.Credentials.AccessKeyId),
		SessionKey:   aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken: aws.ToString(out.Credentials.SessionToken),
	}, nil
}

// SigninToken exchanges the current credentials for a console sign-in token.
func (b *Builder) SigninToken(ctx context.Context) (string, error) {
	s, err := b.session(ctx)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode session")
	}

	query := url.Values{}
	query.Set("Action", "getSigninToken")
	query.Set("DurationSeconds", fmt.Sprint(int(b.duration.Seconds())))
	query.Set("Session", string(encoded))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create sign-in token request")
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to request sign-in token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &SigninError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read sign-in token")
	}
	var token struct {
		SigninToken string `json:"SigninToken"`
	}
	if err = json.Unmarshal(body, &token); err != nil {
		return "", errors.Wrap(err, "failed to decode sign-in token")
	}
	if token.SigninToken == "" {
		return "", &SigninError{StatusCode: resp.StatusCode}
	}
	return token.SigninToken, nil
}

// URL returns a console login URL for the current credentials.
func (b *Builder) URL(ctx context.Context) (string, error) {
	token, err := b.SigninToken(ctx)
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("Action", "login")
	query.Set("Destination", b.destination)
	query.Set("SigninToken", token)
	query.Set("Issuer", b.issuer)
	return b.endpoint + "?" + query.Encode(), nil
}
