package message

// Message ids carried over the bus. Req mids are inbound commands, Notif
// mids are outbound broadcasts.
const (
	MsgCreateOrderReq = "bridge-scheduler-create-order-req"

	MsgOrderStatusNotif = "bridge-scheduler-order-status-notif"
	MsgOrderAlertNotif  = "bridge-scheduler-order-alert-notif"
)

// MsgError wraps a failed entity on the alert mid.
type MsgError struct {
	Error string `json:"error"`
	Value string `json:"value"`
}
