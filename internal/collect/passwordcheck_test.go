package collect

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

func filetimeFor(t time.Time) string {
	ticks := (t.Unix() + filetimeEpochDiffSeconds) * 10_000_000
	return strconv.FormatInt(ticks, 10)
}

func TestFiletimeToTimeRoundTrips(t *testing.T) {
	want := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := (want.Unix() + filetimeEpochDiffSeconds) * 10_000_000
	got := filetimeToTime(ticks)
	require.True(t, want.Equal(got))
}

func TestCheckPasswordExpirySkippedForIntegratedCredentials(t *testing.T) {
	client := &fakeLDAPClient{}
	dialer := &fakeDialer{client: client}
	rc, ctx := domain.NewRunContext(context.Background())
	rc.DomainName = "corp.local"
	rc.Credentials = domain.IntegratedCredentials()

	require.NoError(t, checkPasswordExpiry(ctx, dialer, rc, logger.NewNop()))
}

func TestCheckPasswordExpirySkippedWhenOptedOut(t *testing.T) {
	client := &fakeLDAPClient{}
	dialer := &fakeDialer{client: client}
	rc, ctx := domain.NewRunContext(context.Background())
	rc.DomainName = "corp.local"
	rc.SkipPasswordCheck = true
	var err error
	rc.Credentials, err = domain.NewExplicitCredentials("svc", "hunter2")
	require.NoError(t, err)

	require.NoError(t, checkPasswordExpiry(ctx, dialer, rc, logger.NewNop()))
}

func TestCheckPasswordExpiryWarnsWhenNearExpiry(t *testing.T) {
	near := time.Now().Add(3 * 24 * time.Hour)
	acct := domain.NewAttributeObject("CN=svc,DC=corp,DC=local", map[string]string{
		"objectclass": "user",
		"msds-userpasswordexpirytimecomputed": filetimeFor(near),
	})
	client := &fakeLDAPClient{objects: []domain.DirectoryObject{acct}}
	dialer := &fakeDialer{client: client}

	rc, ctx := domain.NewRunContext(context.Background())
	rc.DomainName = "corp.local"
	var err error
	rc.Credentials, err = domain.NewExplicitCredentials("svc", "hunter2")
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logger.New("test", logger.Config{Output: &buf})

	// Never returns an error: this is a warning-only pre-flight check.
	require.NoError(t, checkPasswordExpiry(ctx, dialer, rc, log))
	require.Contains(t, buf.String(), "near expiry")
}
