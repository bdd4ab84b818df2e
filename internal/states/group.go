package states

import (
	"sort"
)

// GroupReport summarises a GroupByEpoch call.
type GroupReport struct {
	Epochs int
	// Dropped counts epochs that did not have exactly two object ids.
	Dropped       int
	DroppedEpochs []float64
}

// GroupByEpoch groups records by epoch and then by object id. SampleIndex
// is assigned by order of appearance within each (epoch, object) group.
// Epochs with other than two distinct ids are dropped. Groups are returned
// in ascending epoch order with A holding the smaller object id.
func GroupByEpoch(records []State) ([]EpochGroup, GroupReport) {
	byEpoch := make(map[float64]map[uint16][]State)
	for _, rec := range records {
		objs, ok := byEpoch[rec.Epoch]
		if !ok {
			objs = make(map[uint16][]State, 2)
			byEpoch[rec.Epoch] = objs
		}
		rec.SampleIndex = int32(len(objs[rec.ObjectID]))
		objs[rec.ObjectID] = append(objs[rec.ObjectID], rec)
	}

	epochs := make([]float64, 0, len(byEpoch))
	for ep := range byEpoch {
		epochs = append(epochs, ep)
	}
	sort.Float64s(epochs)

	var report GroupReport
	groups := make([]EpochGroup, 0, len(epochs))
	for _, ep := range epochs {
		objs := byEpoch[ep]
		if len(objs) != 2 {
			report.Dropped++
			report.DroppedEpochs = append(report.DroppedEpochs, ep)
			continue
		}

		ids := make([]uint16, 0, 2)
		for id := range objs {
			ids = append(ids, id)
		}
		if ids[0] > ids[1] {
			ids[0], ids[1] = ids[1], ids[0]
		}

		groups = append(groups, EpochGroup{
			Epoch: ep,
			IDA:   ids[0],
			IDB:   ids[1],
			A:     objs[ids[0]],
			B:     objs[ids[1]],
		})
	}
	report.Epochs = len(groups)
	return groups, report
}
