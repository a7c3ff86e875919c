package models

// AssetPair identifies a (coin, fiat) combination being traded,
// e.g. BTC/EUR. It is a value type and can be used as a map key.
type AssetPair struct {
	Coin string
	Fiat string
}

func (p AssetPair) String() string {
	return p.Coin + "/" + p.Fiat
}

// Less orders pairs lexicographically by (coin, fiat).
// The ordering is for stable display only and has no market meaning.
func (p AssetPair) Less(other AssetPair) bool {
	if p.Coin != other.Coin {
		return p.Coin < other.Coin
	}
	return p.Fiat < other.Fiat
}
