package model

import "time"

// DeliveryConfirmation records the external delivery-confirmed event for a
// shipment. Escrow release is preconditioned on its existence.
type DeliveryConfirmation struct {
	ShipmentID     string
	ConfirmedBy    string
	ConfirmedAt    time.Time
	ProofReference string
	RecordedAt     time.Time
}
