// Package stream implements the reconnecting subscription to the training
// metric feed.
//
// A Manager owns one logical subscription. It dials a Transport through a
// Dialer, decodes every frame into a training.Message, and on transport
// failure schedules a retry according to its Policy. Business errors sent
// inside the stream end the session without retrying. A Gate makes sure
// the user sees one warning per failure episode, one success message on
// recovery and one error on terminal failure.
//
// SSEDialer is the production Dialer; it speaks server-sent events over
// HTTP.
package stream
