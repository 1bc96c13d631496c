package device

// Capability names announced by the device server. The controller only
// builds commands for devices that report the capability an actor mapping
// asks for; anything else the server supports is ignored.
const (
	CapabilityVibrate = "vibrate"
	CapabilityRotate  = "rotate"
)

// Handle describes one device as announced by the device-control server.
// The index is the server's identifier; the controller never inspects the
// device's underlying protocol.
type Handle struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Channels     int      `json:"channels"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the device announced the given capability
func (h Handle) HasCapability(capability string) bool {
	for _, c := range h.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Message types of the JSON envelope spoken with the device server.
const (
	MsgTypeHandshake         = "handshake"
	MsgTypeHandshakeAck      = "handshake_ack"
	MsgTypeDeviceListRequest = "device_list_request"
	MsgTypeDeviceList        = "device_list"
	MsgTypeDeviceAdded       = "device_added"
	MsgTypeDeviceRemoved     = "device_removed"
	MsgTypeVibrate           = "vibrate"
	MsgTypeStopDevice        = "stop_device"
	MsgTypeError             = "error"
)

// channelLevel carries one channel's normalized intensity on the wire
type channelLevel struct {
	Channel   int     `json:"channel"`
	Intensity float64 `json:"intensity"`
}

// clientMessage is the envelope for every message sent to the server
type clientMessage struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	ClientName  string         `json:"client_name,omitempty"`
	DeviceIndex int            `json:"device_index,omitempty"`
	Channels    []channelLevel `json:"channels,omitempty"`
}

// serverMessage is the envelope for every message received from the server
type serverMessage struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type"`
	ServerName  string   `json:"server_name,omitempty"`
	Devices     []Handle `json:"devices,omitempty"`
	Device      *Handle  `json:"device,omitempty"`
	DeviceIndex int      `json:"device_index,omitempty"`
	Message     string   `json:"message,omitempty"`
}
