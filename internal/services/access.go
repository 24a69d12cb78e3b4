package services

import (
	"github.com/pkg/errors"

	"potledger/internal/models"
)

// RequireIdentity rejects callers that did not authenticate.
func RequireIdentity(caller models.PrincipalID) error {
	if caller == "" {
		return errors.Wrap(models.ErrUnauthorized, "anonymous caller")
	}
	return nil
}

// RequireAdmin rejects every caller except the configured admin.
func RequireAdmin(cfg *models.Config, caller models.PrincipalID) error {
	if caller == "" || caller != cfg.Admin {
		return errors.Wrapf(models.ErrUnauthorized, "%q is not the admin", caller)
	}
	return nil
}

// RequireClaimant rejects every caller except the winner named in rec.
func RequireClaimant(caller models.PrincipalID, rec models.WinnerRecord) error {
	if caller == "" || caller != rec.Winner {
		return errors.Wrapf(models.ErrUnauthorized, "%q cannot claim for %q", caller, rec.Winner)
	}
	return nil
}
