package metadata

import (
	"regexp"
	"sort"
	"strconv"
)

var (
	labelHeightRe    = regexp.MustCompile(`(\d{3,4})p`)
	filenameHeightRe = regexp.MustCompile(`_(\d{3,4})p\.`)
)

// QualityHeight extracts the pixel height encoded in a quality label such
// as "720p". Labels without a recognizable height ("best", "source") rank
// as 0 so they sort below every numeric rendition.
func QualityHeight(label string) int {
	m := labelHeightRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return h
}

// LabelForFilename derives the quality label from a downloaded variant
// filename like "abc123_720p.mp4". Files that do not carry a height
// marker are labelled "best".
func LabelForFilename(name string) string {
	m := filenameHeightRe.FindStringSubmatch(name)
	if m == nil {
		return "best"
	}
	return m[1] + "p"
}

// SortVariants orders variants for presentation: highest rendition first,
// equal heights keep their original order.
func SortVariants(variants []VideoVariant) {
	sort.SliceStable(variants, func(i, j int) bool {
		return QualityHeight(variants[i].QualityLabel) > QualityHeight(variants[j].QualityLabel)
	})
}
