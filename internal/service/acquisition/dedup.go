package acquisition

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jgivc/boundaryimporter/internal/entity"
)

type Decision int

const (
	DecisionImport Decision = iota
	DecisionAlreadyPresent
)

func (d Decision) String() string {
	if d == DecisionAlreadyPresent {
		return "AlreadyPresent"
	}

	return "Import"
}

// KnownSet holds the identifiers the registry already has. It is built once per run.
type KnownSet struct {
	ids mapset.Set[string]
}

func NewKnownSet(infos []*entity.BoundaryInfo) *KnownSet {
	ids := mapset.NewSet[string]()
	for _, info := range infos {
		if info == nil {
			continue
		}

		ids.Add(info.ID)
	}

	return &KnownSet{ids: ids}
}

func (k *KnownSet) Decide(id string) Decision {
	if k.ids.Contains(id) {
		return DecisionAlreadyPresent
	}

	return DecisionImport
}

func (k *KnownSet) Remember(id string) {
	k.ids.Add(id)
}

func (k *KnownSet) Len() int {
	return k.ids.Cardinality()
}
