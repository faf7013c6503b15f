package models

import "time"

type ImageOwner string

const (
	ImageOwnerPlayer ImageOwner = "players"
	ImageOwnerTeam   ImageOwner = "teams"
)

func (o ImageOwner) Valid() bool {
	return o == ImageOwnerPlayer || o == ImageOwnerTeam
}

type Image struct {
	ID        string
	OwnerKind ImageOwner
	OwnerID   int64
	Bucket    string
	ObjectKey string
	Format    string
	SizeBytes int64
	Checksum  []byte
	CreatedAt time.Time
}
