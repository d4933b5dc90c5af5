package protocol

// Shape limits for mount stream payloads. The codec itself is flat (views
// and mutations never nest), so unlike tree-shaped wire formats there is no
// recursion depth to police; what needs bounding is the fan-out of each
// repeated structure. These complement the allocation limits in decoder.go.
const (
	// MaxPropsPerView limits the number of props a single view may carry.
	// Real component props run in the dozens; 4096 leaves generous room
	// while keeping a hostile view from dominating a frame.
	MaxPropsPerView = 4096

	// MaxResyncTransactions limits how many journaled transactions a
	// single resync reply may replay. A gap wider than this should be
	// answered with a snapshot instead.
	MaxResyncTransactions = 4096

	// MaxMutationsPerTransaction limits the mutation count of one
	// transaction. A snapshot of a tree at this scale is already beyond
	// what a mount stage applies interactively.
	MaxMutationsPerTransaction = MaxCollectionCount
)
