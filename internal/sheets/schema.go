package sheets

import "context"

// Canonical status log: [jobNumber, timestamp, area, status, user, dueDate, ...extra].
const (
	ColJob = iota
	ColTimestamp
	ColArea
	ColStatus
	ColUser
	ColDueDate
)

// Per-area logs: [jobNumber, timestamp, status, user, dueDate, ...extra].
// The area comes from the sheet itself.
const (
	AreaColJob = iota
	AreaColTimestamp
	AreaColStatus
	AreaColUser
	AreaColDueDate
)

// Transaction log: [id, timestamp, operation-tag, actor].
const (
	TxColID = iota
	TxColTimestamp
	TxColOperation
	TxColActor
)

// OpSyncProduction tags the synchronizer checkpoint in the transaction log.
const OpSyncProduction = "SYNC_PRODUCTION"

var (
	CanonicalHeader   = Row{"Numero", "Fecha", "Area", "Estado", "Usuario", "Fecha Entrega"}
	AreaHeader        = Row{"Numero", "Fecha", "Estado", "Usuario", "Fecha Entrega"}
	TransactionHeader = Row{"ID", "Fecha", "Operacion", "Usuario"}
)

// Seeder is implemented by stores that can create a sheet with a header row.
type Seeder interface {
	EnsureSheet(ctx context.Context, sheet string, header Row) error
}
