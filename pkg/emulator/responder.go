package emulator

import (
	"net"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/ssdp"
)

// responder answers SSDP searches for the emulator's search target.
type responder struct {
	emu    *Emulator
	logger *Logger.Logger
	conn   *net.UDPConn
}

func newResponder(emu *Emulator, logger *Logger.Logger) (*responder, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", ssdp.MulticastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, gaddr)
	if err != nil {
		return nil, err
	}
	return &responder{emu: emu, logger: Logger.OrNop(logger), conn: conn}, nil
}

func (r *responder) serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.logger.Debugf("emulator: ssdp read: %v", err)
			return
		}
		resp := r.searchResponse(buf[:n])
		if resp == nil {
			continue
		}
		r.logger.Debugf("emulator: answering search from %s", addr)
		if _, err := r.conn.WriteToUDP(resp, addr); err != nil {
			r.logger.Debugf("emulator: ssdp write: %v", err)
		}
	}
}

// searchResponse renders the answer to one M-SEARCH, or nil when the probe
// is not addressed to this device.
func (r *responder) searchResponse(data []byte) []byte {
	req, err := ssdp.ParseSearchRequest(data)
	if err != nil {
		return nil
	}
	if req.SearchTarget != r.emu.cfg.SearchTarget && req.SearchTarget != "ssdp:all" {
		return nil
	}
	return ssdp.SearchResponse{
		Location:     r.emu.BaseURL() + "/dd.xml",
		Server:       r.emu.cfg.ModelName,
		SearchTarget: r.emu.cfg.SearchTarget,
		USN:          r.emu.usn(),
	}.Bytes()
}

func (r *responder) close() {
	r.conn.Close()
}
