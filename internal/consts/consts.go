package consts

const (
	BTC_SYMBOL = "BTC"
	ETH_SYMBOL = "ETH"

	BTC_DECIMALS = 8
	ETH_DECIMALS = 18

	// Hex length of a SHA-256 hashed secret.
	HASHED_SECRET_LEN = 64
)
