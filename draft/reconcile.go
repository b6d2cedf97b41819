package draft

// Plan is the operation set that turns the server list into the working list.
type Plan[T any] struct {
	Inserts []T
	Updates []Record[T]
	Deletes []int64
}

func (p Plan[T]) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Reconcile partitions working against server:
//   - inserts: working records with a sentinel id, payload only
//   - updates: persisted working records whose payload differs from the server copy
//   - deletes: server ids no longer present in the working list
//
// Inserts and updates keep working-list order, deletes keep server-list order.
// A positive working id unknown to the server is neither updated nor inserted.
func Reconcile[T any](server, working []Record[T]) Plan[T] {
	plan := Plan[T]{}

	serverById := make(map[int64]Record[T], len(server))
	for _, s := range server {
		serverById[s.ID] = s
	}

	kept := make(map[int64]bool, len(working))
	for _, w := range working {
		switch {
		case w.ID < 0:
			plan.Inserts = append(plan.Inserts, w.Data)
		case w.ID > 0:
			kept[w.ID] = true
			s, ok := serverById[w.ID]
			if ok && !payloadEqual(s.Data, w.Data) {
				plan.Updates = append(plan.Updates, w)
			}
		}
	}

	for _, s := range server {
		if !kept[s.ID] {
			plan.Deletes = append(plan.Deletes, s.ID)
		}
	}
	return plan
}
