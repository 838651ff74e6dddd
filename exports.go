package kudos

import (
	"github.com/xraph/kudos/grant"
	"github.com/xraph/kudos/period"
	"github.com/xraph/kudos/quota"
)

// Re-export common types so callers rarely need the sub-packages.

// Grant is re-exported from the grant package.
type Grant = grant.Grant

// Input is re-exported from the grant package.
type Input = grant.Input

// Candidate is re-exported from the grant package.
type Candidate = grant.Candidate

// Recognition is re-exported from the grant package.
type Recognition = grant.Recognition

// Message is re-exported from the grant package.
type Message = grant.Message

// Period is re-exported from the period package.
type Period = period.Period

// Balance is re-exported from the quota package.
type Balance = quota.Balance

// Re-export message constructors
var (
	Provided       = grant.Provided
	DefaultMessage = grant.Default
)
