package questionnaire

// transition returns the next position from a given asset-track position.
type transition func(Answers) int

// assetTransitions is the asset-track reachability graph. Vehicle payment
// and value are only reachable when a vehicle is owned.
var assetTransitions = map[int]transition{
	0: func(Answers) int { return 1 },
	1: func(a Answers) int {
		if a.Get(QVehicles) == Yes {
			return 2
		}
		return len(assetQuestions)
	},
	2: func(Answers) int { return 3 },
	3: func(Answers) int { return len(assetQuestions) },
}

// NextAssetPosition returns the position that follows pos in the asset
// track given the asset answers. len(AssetCatalog) means exhausted.
func NextAssetPosition(pos int, a Answers) int {
	if t, ok := assetTransitions[pos]; ok {
		return t(a)
	}
	return len(assetQuestions)
}

// NextPrimaryPosition returns pos+1 capped at n.
func NextPrimaryPosition(pos, n int) int {
	if pos+1 > n {
		return n
	}
	return pos + 1
}
