package market

import "math/big"

const bpsDenominator = 10000

// SplitFee divides a payment amount into the platform fee and the
// seller remainder: fee = floor(amount * bps / 10000). The fee never
// exceeds amount for bps <= 10000.
func SplitFee(amount *big.Int, bps uint64) (fee, remainder *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	remainder = new(big.Int).Sub(amount, fee)
	return fee, remainder
}
