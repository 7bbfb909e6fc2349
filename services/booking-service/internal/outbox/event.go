package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (production-style: event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Appointment lifecycle event types emitted by this service.
const (
	EventAppointmentScheduled     = "booking.appointment.scheduled.v1"
	EventAppointmentCancelled     = "booking.appointment.cancelled.v1"
	EventAppointmentStatusChanged = "booking.appointment.status_changed.v1"
)
