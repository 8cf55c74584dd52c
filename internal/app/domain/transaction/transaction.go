package transaction

import "time"

// Type classifies a marketplace transaction.
type Type string

const (
	TypeMint     Type = "mint"
	TypeTransfer Type = "transfer"
	TypeSale     Type = "sale"
)

// Status is the settlement state reported for a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Transaction records a mint, transfer or sale of an ordinal. Amount is a
// decimal BTC string.
type Transaction struct {
	ID           string    `json:"_id" bson:"_id"`
	TxID         string    `json:"txid" bson:"txid"`
	Type         Type      `json:"type" bson:"type"`
	Status       Status    `json:"status" bson:"status"`
	From         string    `json:"from,omitempty" bson:"from,omitempty"`
	To           string    `json:"to,omitempty" bson:"to,omitempty"`
	Amount       string    `json:"amount" bson:"amount"`
	OrdinalID    string    `json:"ordinalId" bson:"ordinalId"`
	CollectionID string    `json:"collectionId" bson:"collectionId"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}

// Filter narrows transaction listings. Zero values do not filter.
type Filter struct {
	Type         Type
	OrdinalID    string
	CollectionID string
	Since        time.Time
	Limit        int
}
