package consensus

// Protocol constants (§6). These are consensus-critical: changing any of
// them changes which chains validate.
const (
	MiningReward        uint64 = 10_000
	MaxTransactions     int    = 25
	TargetBlockInterval uint64 = 120
	RetargetWindow      int    = 10
	BootstrapDifficulty uint64 = 1_000

	AddressLen = 20
	BlockIDLen = 32
)

// GenesisPrevious is the all-zero 32-byte value required of the block at
// height 0.
var GenesisPrevious = [BlockIDLen]byte{}
