// Package access holds the single privileged principal that may mutate the
// registries. Both registries receive a *Controller at construction and call
// Authorize before touching state; there is no process-wide owner.
package access

import (
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
)

// Controller gates owner-only operations. The owner is fixed at construction.
type Controller struct {
	owner id.Address
}

// New builds a controller for owner. The zero address cannot own anything.
func New(owner id.Address) (*Controller, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner must not be the zero address")
	}
	return &Controller{owner: owner}, nil
}

// Owner returns the privileged principal.
func (c *Controller) Owner() id.Address {
	return c.owner
}

// Authorize succeeds iff caller is the owner. It has no side effects.
func (c *Controller) Authorize(caller id.Address) error {
	if caller != c.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
	}
	return nil
}
