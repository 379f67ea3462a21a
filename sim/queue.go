package sim

import "container/heap"

type queueItem struct {
	ev    Event
	index int // position in the heap, kept current by Swap for heap.Remove
}

// eventQueue implements heap.Interface and orders events by (Time, ID).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-PriorityQueue
type eventQueue []*queueItem

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].ev.Time != eq[j].ev.Time {
		return eq[i].ev.Time < eq[j].ev.Time
	}
	return eq[i].ev.id < eq[j].ev.id
}

func (eq eventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
	eq[i].index = i
	eq[j].index = j
}

func (eq *eventQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*eq)
	*eq = append(*eq, item)
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*eq = old[0 : n-1]
	return item
}

func (eq *eventQueue) push(item *queueItem) {
	heap.Push(eq, item)
}

func (eq *eventQueue) popNext() *queueItem {
	if eq.Len() == 0 {
		return nil
	}
	return heap.Pop(eq).(*queueItem)
}

func (eq *eventQueue) peek() *queueItem {
	if eq.Len() == 0 {
		return nil
	}
	return (*eq)[0]
}

func (eq *eventQueue) remove(item *queueItem) {
	if item.index < 0 || item.index >= eq.Len() || (*eq)[item.index] != item {
		return
	}
	heap.Remove(eq, item.index)
}
