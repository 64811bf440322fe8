package collect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gldap "github.com/go-ldap/ldap/v3"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/ldap"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// passwordExpiryWarningWindow is how far out from expiry the bound
// account's password expiry earns a log warning.
const passwordExpiryWarningWindow = 7 * 24 * time.Hour

// filetimeEpochDiffSeconds converts a Windows FILETIME's epoch
// (1601-01-01) to Unix's (1970-01-01).
const filetimeEpochDiffSeconds = 11644473600

// checkPasswordExpiry warns if the bound account's password is close to
// expiring, a non-fatal pre-flight check: it never returns an error, so
// it can't fault a run on its own.
func checkPasswordExpiry(ctx context.Context, dialer ldap.Dialer, rc *collect.RunContext, log *logger.Logger) error {
	if rc.SkipPasswordCheck || rc.Credentials.Kind != collect.CredentialExplicit {
		return nil
	}

	target := rc.DomainController
	if target == "" {
		target = rc.DomainName
	}
	client, err := dialer.Dial(ctx, target)
	if err != nil {
		// The real bind happens later in the sequence and will surface a
		// connection problem on its own terms.
		return nil
	}
	defer client.Close()

	username := rc.Credentials.Username
	objects, errs := client.Search(ctx, ldap.SearchRequest{
		BaseDN:     domainDN(rc.DomainName),
		Filter:     fmt.Sprintf("(sAMAccountName=%s)", gldap.EscapeFilter(username)),
		Attributes: []string{"msds-userpasswordexpirytimecomputed"},
		Scope:      gldap.ScopeWholeSubtree,
	})

	obj, ok := <-objects
	if !ok {
		<-errs
		return nil
	}

	raw, ok := obj.GetProperty("msds-userpasswordexpirytimecomputed")
	if !ok {
		return nil
	}
	ticks, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ticks <= 0 {
		return nil
	}

	expiry := filetimeToTime(ticks)
	if until := time.Until(expiry); until > 0 && until <= passwordExpiryWarningWindow {
		log.Warn(ctx, "bound account's password is near expiry", "username", username, "expires_at", expiry.Format(time.RFC3339))
	}
	return nil
}

func filetimeToTime(ticks int64) time.Time {
	seconds := ticks/10_000_000 - filetimeEpochDiffSeconds
	return time.Unix(seconds, 0).UTC()
}
