// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Harness-wide tunables (compile-time only)
//
// Purpose:
//   - Cache geometry used by the prefetch capability and the B+tree node sizing.
//   - Fixed-point scale of the sample and weight representation.
//   - Datagram header geometry shared with the (simulated) transmitter.
//   - Limits enforced by configuration validation.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Cache Geometry ─────────────────────────────

const (
	// LineSize is the cache line width assumed by prefetch staging.
	// 64 bytes holds for x86-64 and Cortex-A72 alike.
	LineSize = 64

	// NodeBytes is the target byte size of one B+tree node page.
	// Slot counts are derived from it the same way for leaves and inner nodes.
	NodeBytes = 256

	// BinSearchThreshold is the key-array byte size above which node search
	// switches from a linear scan to binary search.
	BinSearchThreshold = 256

	// MinNodeSlots is the smallest slot count accepted for any node kind.
	// Below three a split cannot leave both halves non-empty.
	MinNodeSlots = 3
)

// ───────────────────────────── Fixed Point ────────────────────────────────

const (
	// FracBits is the number of fractional bits of the Q3.13 representation.
	FracBits = 13

	// FixedOne is the raw value of 1.0 in Q3.13.
	FixedOne = 1 << FracBits

	// FixedMax and FixedMin bound the raw int16 storage.
	FixedMax = 1<<15 - 1
	FixedMin = -1 << 15

	// ItemSize is the byte width of one stored data item.
	ItemSize = 2
)

// ─────────────────────────── Datagram Geometry ────────────────────────────

const (
	// IDSize is the byte width of an entity identifier (UUID).
	IDSize = 16

	// HeaderSize is the fixed datagram prefix: 16-byte id, 4-byte ordinal and
	// the two inline data items that always travel with the header.
	HeaderSize = IDSize + 4 + 2*ItemSize

	// HeaderItems is the count of data items carried inside HeaderSize.
	HeaderItems = 2

	// MinCoefficients is the smallest accepted coefficient count per entity.
	MinCoefficients = 2

	// CommandSeq marks a record as a command frame rather than a sample.
	CommandSeq = ^uint32(0)
)

// ───────────────────────────── Run Limits ─────────────────────────────────

const (
	// MaxTaskCount is the largest accepted scheduler pool width.
	MaxTaskCount = 16

	// DefaultGranularity is the divider used by simulated bounds.
	DefaultGranularity = 1024

	// FeedRingSize is the record capacity of the producer → ingest ring.
	FeedRingSize = 1 << 10
)

// ───────────────────────────── Seeds ──────────────────────────────────────

const (
	// WeightsSeed seeds the simulated weight generator.
	WeightsSeed = 5432

	// AmplitudeSeed seeds the simulated sample payload generator.
	AmplitudeSeed = 5489

	// ShuffleSeed seeds the per-ordinal entity order shuffle.
	ShuffleSeed = 1

	// IDSeed seeds entity identifier generation.
	IDSeed = 1234
)

// ─────────────────────────── Cache Clearing ───────────────────────────────

const (
	// ClearCacheBytes is the size of the buffer rewritten to evict the data
	// caches before the timed pipeline models run. Larger than any LLC in use.
	ClearCacheBytes = 64 << 20
)
