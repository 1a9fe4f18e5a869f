package message

import "minhton/internal/domain"

// BootstrapDiscover is multicast by a joining node to 224.1.1.1:11999,
// repeated up to kBootstrapRepeats times (§4.3, §6.2).
type BootstrapDiscover struct {
	DiscoveryMessage string
}

func (*BootstrapDiscover) Type() Type { return TypeBootstrapDiscover }
func (m *BootstrapDiscover) writeBody(w *writer) { w.str(m.DiscoveryMessage) }
func (m *BootstrapDiscover) readBody(r *reader) (err error) {
	m.DiscoveryMessage, err = r.str()
	return err
}

// BootstrapResponse is sent unicast by any existing participant in reply
// to a BootstrapDiscover, pointing the joiner at a well-formed entry node
// (§4.3, §6.2).
type BootstrapResponse struct {
	NodeToJoin domain.NodeInfo
}

func (*BootstrapResponse) Type() Type { return TypeBootstrapResponse }
func (m *BootstrapResponse) writeBody(w *writer) { w.nodeInfo(m.NodeToJoin) }
func (m *BootstrapResponse) readBody(r *reader) (err error) {
	m.NodeToJoin, err = r.nodeInfo()
	return err
}
