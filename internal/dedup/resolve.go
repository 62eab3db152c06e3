package dedup

import (
	"fmt"

	"github.com/level10nurd/documentExtraction/internal/models"
)

// Strategy picks which member of a duplicate group is kept
type Strategy string

const (
	KeepFirst      Strategy = "keep_first"
	KeepLast       Strategy = "keep_last"
	KeepNewestFile Strategy = "keep_newest_file"
)

// ParseStrategy validates a strategy name
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case KeepFirst, KeepLast, KeepNewestFile:
		return s, nil
	case "":
		return KeepFirst, nil
	default:
		return "", fmt.Errorf("unknown deduplicate strategy %q", name)
	}
}

// Resolution is the decision taken for one group
type Resolution struct {
	Group   models.DuplicateGroup
	Kept    int
	Dropped []int
}

// Resolve decides, per group, which record is kept. Records are not modified.
func Resolve(records []*models.Record, groups []models.DuplicateGroup, strategy Strategy) ([]Resolution, error) {
	out := make([]Resolution, 0, len(groups))
	for _, g := range groups {
		if g.Size() < 2 {
			continue
		}
		for _, i := range g.Indices {
			if i < 0 || i >= len(records) {
				return nil, fmt.Errorf("duplicate group %q references index %d outside %d records", g.Key, i, len(records))
			}
		}

		kept, err := pick(records, g.Indices, strategy)
		if err != nil {
			return nil, err
		}

		res := Resolution{Group: g, Kept: kept}
		for _, i := range g.Indices {
			if i != kept {
				res.Dropped = append(res.Dropped, i)
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func pick(records []*models.Record, indices []int, strategy Strategy) (int, error) {
	switch strategy {
	case KeepFirst, "":
		return indices[0], nil
	case KeepLast:
		return indices[len(indices)-1], nil
	case KeepNewestFile:
		best := indices[0]
		for _, i := range indices[1:] {
			if records[i].SourceModTime.After(records[best].SourceModTime) {
				best = i
			}
		}
		return best, nil
	default:
		return 0, fmt.Errorf("unknown deduplicate strategy %q", strategy)
	}
}

// DroppedIndices collects every index some resolution dropped
func DroppedIndices(resolutions []Resolution) map[int]bool {
	out := make(map[int]bool)
	for _, res := range resolutions {
		for _, i := range res.Dropped {
			out[i] = true
		}
	}
	return out
}

// DuplicateFiles maps each kept index to the source files of the records dropped in its favor
func DuplicateFiles(records []*models.Record, resolutions []Resolution) map[int][]string {
	out := make(map[int][]string)
	for _, res := range resolutions {
		for _, i := range res.Dropped {
			out[res.Kept] = append(out[res.Kept], records[i].SourceFile)
		}
	}
	return out
}
