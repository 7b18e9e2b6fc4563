package devnet

// recordRow is one minted record. Seq fixes the enumeration order.
type recordRow struct {
	Seq            uint   `gorm:"primaryKey;autoIncrement"`
	RecordKey      string `gorm:"uniqueIndex;size:128;not null"`
	Name           string `gorm:"size:255"`
	Description    string `gorm:"size:255"`
	Creator        string `gorm:"index;size:64"`
	Handle         string `gorm:"type:text;not null"`
	Timestamp      int64  `gorm:"not null"` // Unix seconds
	PublicValue1   int64
	PublicValue2   int64
	IsVerified     bool `gorm:"index"`
	DecryptedValue int64
	VerifiedAt     int64 // Unix milliseconds, 0 while unverified
}

func (recordRow) TableName() string { return "records" }

// Transaction kinds
const (
	txKindCreate = "create"
	txKindVerify = "verify"
)

// txRow is one submitted transaction
type txRow struct {
	Hash        string `gorm:"primaryKey;size:66"`
	Kind        string `gorm:"size:16;not null"`
	RecordKey   string `gorm:"index;size:128;not null"`
	SubmittedAt int64  `gorm:"not null"` // Unix milliseconds
	FinalAt     int64  `gorm:"not null"` // Unix milliseconds
}

func (txRow) TableName() string { return "transactions" }
