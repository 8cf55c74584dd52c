package ordinal

import "time"

// Status is the inscription state of an ordinal.
type Status string

const (
	StatusPending Status = "pending"
	StatusMinted  Status = "minted"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMinted, StatusFailed:
		return true
	}
	return false
}

// BlockchainData records the placeholder inscription result.
type BlockchainData struct {
	TxID          string `json:"txid,omitempty" bson:"txid,omitempty"`
	InscriptionID string `json:"inscriptionId,omitempty" bson:"inscriptionId,omitempty"`
	ContentType   string `json:"contentType,omitempty" bson:"contentType,omitempty"`
	Address       string `json:"address,omitempty" bson:"address,omitempty"`
}

// Ordinal is a single item within a collection.
type Ordinal struct {
	ID             string          `json:"_id" bson:"_id"`
	Name           string          `json:"name" bson:"name"`
	Description    string          `json:"description" bson:"description"`
	Image          string          `json:"image" bson:"image"`
	OrdinalNumber  int             `json:"ordinalNumber" bson:"ordinalNumber"`
	CollectionID   string          `json:"collectionId" bson:"collectionId"`
	Price          string          `json:"price" bson:"price"`
	Owner          string          `json:"owner" bson:"owner"`
	Status         Status          `json:"status" bson:"status"`
	Listed         bool            `json:"listed" bson:"listed"`
	ListPrice      string          `json:"listPrice,omitempty" bson:"listPrice,omitempty"`
	BlockchainData *BlockchainData `json:"blockchainData,omitempty" bson:"blockchainData,omitempty"`
	MintedAt       *time.Time      `json:"mintedAt,omitempty" bson:"mintedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Filter narrows ordinal listings. Zero values do not filter.
type Filter struct {
	Query        string
	CollectionID string
	Owner        string
	Status       Status
	Listed       *bool
	MinPrice     *float64
	MaxPrice     *float64
	Offset       int
	Limit        int
}
