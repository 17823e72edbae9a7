package sync

import "fmt"

// EventGroup identifies the WMS entity family an event belongs to
type EventGroup string

const (
	EventGroupOrder    EventGroup = "order"
	EventGroupStock    EventGroup = "stock"
	EventGroupShipment EventGroup = "shipment"
	EventGroupInbound  EventGroup = "inbound"
	EventGroupArticle  EventGroup = "article"
	EventGroupVariant  EventGroup = "variant"
)

// EventAction identifies what happened to the entity
type EventAction string

const (
	EventActionCreated   EventAction = "created"
	EventActionUpdated   EventAction = "updated"
	EventActionDeleted   EventAction = "deleted"
	EventActionShipped   EventAction = "shipped"
	EventActionCancelled EventAction = "cancelled"
	EventActionAdjusted  EventAction = "adjusted"
	EventActionReceived  EventAction = "received"
	EventActionClosed    EventAction = "closed"
)

// DefaultPriority is assigned to (group, action) pairs absent from the
// priority table. They still process, after everything that is mapped.
const DefaultPriority = 999

type groupAction struct {
	Group  EventGroup
	Action EventAction
}

// Prerequisite names an event that must be fully processed before a
// dependent event may apply
type Prerequisite struct {
	Group  EventGroup
	Action EventAction
}

// priorityTable ranks event kinds for dequeue ordering. Order lifecycle
// events rank highest, then stock, shipment, inbound, and catalog events.
var priorityTable = map[groupAction]int{
	{EventGroupOrder, EventActionCreated}:   1,
	{EventGroupOrder, EventActionUpdated}:   2,
	{EventGroupOrder, EventActionCancelled}: 3,
	{EventGroupOrder, EventActionClosed}:    4,
	{EventGroupOrder, EventActionShipped}:   5,

	{EventGroupStock, EventActionUpdated}:  10,
	{EventGroupStock, EventActionAdjusted}: 11,

	{EventGroupShipment, EventActionCreated}: 15,
	{EventGroupShipment, EventActionUpdated}: 16,
	{EventGroupShipment, EventActionShipped}: 17,
	{EventGroupShipment, EventActionDeleted}: 18,

	{EventGroupInbound, EventActionCreated}:  20,
	{EventGroupInbound, EventActionUpdated}:  21,
	{EventGroupInbound, EventActionReceived}: 22,

	{EventGroupArticle, EventActionCreated}: 30,
	{EventGroupArticle, EventActionUpdated}: 31,
	{EventGroupVariant, EventActionCreated}: 32,
	{EventGroupVariant, EventActionUpdated}: 33,
}

// prerequisiteTable declares causal ordering between event kinds: the keyed
// event may not process until the named prerequisite has processed for the
// same entity.
var prerequisiteTable = map[groupAction]Prerequisite{
	{EventGroupOrder, EventActionUpdated}:   {EventGroupOrder, EventActionCreated},
	{EventGroupOrder, EventActionShipped}:   {EventGroupOrder, EventActionCreated},
	{EventGroupOrder, EventActionCancelled}: {EventGroupOrder, EventActionCreated},
	{EventGroupShipment, EventActionUpdated}: {EventGroupShipment, EventActionCreated},
	{EventGroupShipment, EventActionShipped}: {EventGroupShipment, EventActionCreated},
}

// PriorityFor returns the dequeue priority for a (group, action) pair.
// Unmapped pairs get DefaultPriority.
func PriorityFor(group EventGroup, action EventAction) int {
	if p, ok := priorityTable[groupAction{group, action}]; ok {
		return p
	}
	return DefaultPriority
}

// PrerequisiteFor returns the prerequisite event for a (group, action) pair,
// if one is declared.
func PrerequisiteFor(group EventGroup, action EventAction) (Prerequisite, bool) {
	p, ok := prerequisiteTable[groupAction{group, action}]
	return p, ok
}

// AllowsLocalExistenceBypass reports whether a job's prerequisite may be
// satisfied by the target order already existing locally instead of by a
// processed prerequisite job. This covers orders created through batch sync
// rather than through a webhook, and is deliberately special-cased to
// (order.updated requires order.created) only.
func AllowsLocalExistenceBypass(group EventGroup, action EventAction, prereq Prerequisite) bool {
	return group == EventGroupOrder && action == EventActionUpdated &&
		prereq.Group == EventGroupOrder && prereq.Action == EventActionCreated
}

// ValidatePriorityTables checks the static tables for internal consistency.
// Called once at startup so a bad edit fails loudly instead of silently
// deprioritizing events.
func ValidatePriorityTables() error {
	seen := make(map[int]groupAction, len(priorityTable))
	for ga, p := range priorityTable {
		if p <= 0 || p >= DefaultPriority {
			return fmt.Errorf("priority for %s.%s out of range: %d", ga.Group, ga.Action, p)
		}
		if prev, dup := seen[p]; dup {
			return fmt.Errorf("priority %d assigned to both %s.%s and %s.%s", p, prev.Group, prev.Action, ga.Group, ga.Action)
		}
		seen[p] = ga
	}
	for ga, prereq := range prerequisiteTable {
		if _, ok := priorityTable[groupAction{prereq.Group, prereq.Action}]; !ok {
			return fmt.Errorf("prerequisite %s.%s of %s.%s is not a known event", prereq.Group, prereq.Action, ga.Group, ga.Action)
		}
		if _, ok := priorityTable[ga]; !ok {
			return fmt.Errorf("event %s.%s declares a prerequisite but has no priority", ga.Group, ga.Action)
		}
	}
	return nil
}
