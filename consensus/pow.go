package consensus

import "math/big"

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// powTarget returns floor(2^256 / difficulty). difficulty == 0 is a
// precondition violation (§9 "Difficulty 0"); callers never construct a
// chain state that reaches here with difficulty 0.
func powTarget(difficulty uint64) *big.Int {
	return new(big.Int).Quo(twoTo256, new(big.Int).SetUint64(difficulty))
}

// powSatisfied reports whether blockID, read as a big-endian unsigned
// integer, is admissible under difficulty: int_be(block_id) <= floor(2^256
// / difficulty). This big-endian interpretation is the one documented
// asymmetry against the little-endian pre-images (§4.1) and must not be
// "fixed" to match them.
func powSatisfied(blockID [BlockIDLen]byte, difficulty uint64) bool {
	id := new(big.Int).SetBytes(blockID[:])
	return id.Cmp(powTarget(difficulty)) <= 0
}
