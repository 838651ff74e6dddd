package kudos

import "github.com/xraph/kudos/id"

// ID is the primary identifier type for all kudos entities.
type ID = id.ID

// GrantID identifies a recorded grant.
type GrantID = id.GrantID
