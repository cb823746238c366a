package domain

import (
	"fmt"
	"slices"
)

// InventoryKey identifies one stored inventory file.
type InventoryKey struct {
	Region          Region
	Product         Product
	ForecastHourSet ForecastHourSet
	CycleType       string
}

// ReferenceKey returns the reference page that describes this inventory's variables.
func (k InventoryKey) ReferenceKey() ReferenceKey {
	return ReferenceKey{Region: k.Region, Product: k.Product, ForecastHourSet: k.ForecastHourSet}
}

func (k InventoryKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Region, k.Product, k.ForecastHourSet, k.CycleType)
}

// Task is one forecast hour to fetch. Tasks are values and carry no state.
type Task struct {
	Region          Region
	Product         Product
	CycleType       CycleType
	RunHour         int
	ForecastHourSet ForecastHourSet
	ForecastHour    int
}

// Key returns the inventory this task contributes to.
func (t Task) Key() InventoryKey {
	return InventoryKey{
		Region:          t.Region,
		Product:         t.Product,
		ForecastHourSet: t.ForecastHourSet,
		CycleType:       t.CycleType.Name,
	}
}

func (t Task) String() string {
	return fmt.Sprintf("%s t%02dz f%02d", t.Key(), t.RunHour, t.ForecastHour)
}

// Batch holds every task of one (region, product, run hour, forecast hour set)
// grouping. All tasks share Key.
type Batch struct {
	Key     InventoryKey
	RunHour int
	Tasks   []Task
}

// EnumerateBatches derives the batches for every region, product and
// applicable forecast hour set at each representative run hour. A batch's
// forecast hours are the intersection of the set's hours with the hours of
// the run's cycle type; empty intersections produce no batch. Run hours that
// resolve to a cycle type already covered by an earlier run hour are skipped.
// Output order follows catalog order, then run hour order.
func EnumerateBatches(cat Catalog, runHours []int) []Batch {
	type runCycle struct {
		hour  int
		cycle CycleType
	}
	var runs []runCycle
	seen := make(map[string]bool)
	for _, h := range runHours {
		ct := cat.CycleTypeFor(h)
		if seen[ct.Name] {
			continue
		}
		seen[ct.Name] = true
		runs = append(runs, runCycle{hour: h, cycle: ct})
	}

	var batches []Batch
	for _, region := range cat.regions {
		for _, product := range cat.products {
			for _, run := range runs {
				allowed := run.cycle.Hours()
				for _, set := range product.Sets {
					hours := intersectHours(cat.hoursFor(set), allowed)
					if len(hours) == 0 {
						continue
					}
					b := Batch{
						Key: InventoryKey{
							Region:          region.Region,
							Product:         product.Product,
							ForecastHourSet: set,
							CycleType:       run.cycle.Name,
						},
						RunHour: run.hour,
						Tasks:   make([]Task, 0, len(hours)),
					}
					for _, fh := range hours {
						b.Tasks = append(b.Tasks, Task{
							Region:          region.Region,
							Product:         product.Product,
							CycleType:       run.cycle,
							RunHour:         run.hour,
							ForecastHourSet: set,
							ForecastHour:    fh,
						})
					}
					batches = append(batches, b)
				}
			}
		}
	}
	return batches
}

// EnumerateTasks flattens EnumerateBatches.
func EnumerateTasks(cat Catalog, runHours []int) []Task {
	var tasks []Task
	for _, b := range EnumerateBatches(cat, runHours) {
		tasks = append(tasks, b.Tasks...)
	}
	return tasks
}

// intersectHours returns the hours present in both a and b, ascending.
func intersectHours(a, b []int) []int {
	in := make(map[int]bool, len(b))
	for _, h := range b {
		in[h] = true
	}
	var out []int
	seen := make(map[int]bool, len(a))
	for _, h := range a {
		if in[h] && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}
