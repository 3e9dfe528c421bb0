package ps

import (
	"fmt"
	"time"
)

// Transaction is the receipt for one committed write: the commit id, its
// timestamp, and the author that produced it.
type Transaction struct {
	Id     string
	When   time.Time
	Author string // "Name <email>" format
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}
