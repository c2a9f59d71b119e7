package emulator

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/ocast"
)

// webAppJoinDelay is how long after a start request the simulated webapp
// takes to join the command channel.
const webAppJoinDelay = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes one Emulator over HTTP, the websocket channel and SSDP.
type Server struct {
	emu    *Emulator
	logger *Logger.Logger

	connMu sync.RWMutex
	conns  map[*wsConn]struct{}

	httpSrv   *http.Server
	responder *responder
}

// wsConn is one attached controller with its write guard.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeFrame(frame *ocast.DeviceLayer) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// NewServer wires an emulator to its transports.
func NewServer(emu *Emulator, logger *Logger.Logger) *Server {
	return &Server{
		emu:    emu,
		logger: Logger.OrNop(logger),
		conns:  make(map[*wsConn]struct{}),
	}
}

// Router builds the HTTP surface: device description, application control
// and the websocket command channel.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/dd.xml", s.handleDescription)
	r.GET("/apps/:name", s.handleGetApplication)
	r.POST("/apps/:name", s.handleStartApplication)
	r.DELETE("/apps/:name/run", s.handleStopApplication)
	r.GET("/ocast", s.handleWebSocket)
	return r
}

type descriptionXML struct {
	XMLName xml.Name `xml:"root"`
	Xmlns   string   `xml:"xmlns,attr"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

func (s *Server) handleDescription(c *gin.Context) {
	var desc descriptionXML
	desc.Xmlns = "urn:schemas-upnp-org:device-1-0"
	desc.Device.FriendlyName = s.emu.cfg.FriendlyName
	desc.Device.Manufacturer = s.emu.cfg.Manufacturer
	desc.Device.ModelName = s.emu.cfg.ModelName
	desc.Device.UDN = "uuid:" + s.emu.cfg.UDN
	c.Header("Application-DIAL-URL", s.emu.BaseURL()+"/apps")
	c.XML(http.StatusOK, desc)
}

type serviceXML struct {
	XMLName xml.Name `xml:"service"`
	Xmlns   string   `xml:"xmlns,attr"`
	DialVer string   `xml:"dialVer,attr"`
	Name    string   `xml:"name"`
	Options struct {
		AllowStop string `xml:"allowStop,attr"`
	} `xml:"options"`
	State string `xml:"state"`
	Link  struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Additional struct {
		App2AppURL string `xml:"X_OCAST_App2AppURL"`
		Version    string `xml:"X_OCAST_Version"`
	} `xml:"additionalData"`
}

func (s *Server) handleGetApplication(c *gin.Context) {
	name := c.Param("name")
	running, known := s.emu.appRunning(name)
	if !known {
		c.Status(http.StatusNotFound)
		return
	}
	var svc serviceXML
	svc.Xmlns = "urn:dial-multiscreen-org:schemas:dial"
	svc.DialVer = "2.1"
	svc.Name = name
	svc.Options.AllowStop = "true"
	svc.State = "stopped"
	if running {
		svc.State = "running"
	}
	svc.Link.Rel = "run"
	svc.Link.Href = "run"
	svc.Additional.App2AppURL = s.webSocketURL()
	svc.Additional.Version = s.emu.cfg.Version
	c.XML(http.StatusOK, svc)
}

func (s *Server) handleStartApplication(c *gin.Context) {
	name := c.Param("name")
	if !s.emu.startApp(name) {
		c.Status(http.StatusNotFound)
		return
	}
	s.logger.Infof("emulator: application %s started", name)
	// the webapp joins the channel shortly after launch
	go func() {
		time.Sleep(webAppJoinDelay)
		s.broadcast(s.emu.connectedStatusEvent(ocast.WebAppStatusConnected))
	}()
	c.Status(http.StatusCreated)
}

func (s *Server) handleStopApplication(c *gin.Context) {
	name := c.Param("name")
	if !s.emu.stopApp(name) {
		c.Status(http.StatusNotFound)
		return
	}
	s.logger.Infof("emulator: application %s stopped", name)
	s.broadcast(s.emu.connectedStatusEvent(ocast.WebAppStatusDisconnected))
	c.Status(http.StatusOK)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorf("emulator: ws upgrade failed: %v", err)
		return
	}
	entry := &wsConn{conn: conn}
	s.register(entry)
	defer s.unregister(entry)
	defer conn.Close()

	s.logger.Infof("emulator: controller attached from %s", conn.RemoteAddr())
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Infof("emulator: controller detached")
			} else {
				s.logger.Debugf("emulator: ws read: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			s.logger.Warnf("emulator: dropping non-text frame")
			continue
		}
		s.handleFrame(entry, payload)
	}
}

// handleFrame runs one inbound frame through the device layer: malformed
// json and missing envelope fields are rejected at this level, everything
// else reaches the service handlers.
func (s *Server) handleFrame(entry *wsConn, payload []byte) {
	var env ocast.DeviceLayer
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Warnf("emulator: malformed frame: %v", err)
		s.send(entry, statusReply(0, ocast.StatusJSONFormatError))
		return
	}
	if env.Type != ocast.TypeCommand {
		s.logger.Debugf("emulator: ignoring %s frame %d", env.Type, env.ID)
		return
	}
	if env.ID == 0 || env.Message.Service == "" || env.Message.Data.Name == "" {
		s.send(entry, statusReply(env.ID, ocast.StatusMissingMandatoryField))
		return
	}
	reply, events := s.emu.handleCommand(&env)
	s.send(entry, reply)
	for _, ev := range events {
		s.broadcast(ev)
	}
}

func (s *Server) register(entry *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[entry] = struct{}{}
}

func (s *Server) unregister(entry *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, entry)
}

func (s *Server) send(entry *wsConn, frame *ocast.DeviceLayer) {
	if err := entry.writeFrame(frame); err != nil {
		s.logger.Debugf("emulator: ws write: %v", err)
	}
}

// broadcast delivers one event frame to every attached controller.
func (s *Server) broadcast(frame *ocast.DeviceLayer) {
	s.connMu.RLock()
	entries := make([]*wsConn, 0, len(s.conns))
	for entry := range s.conns {
		entries = append(entries, entry)
	}
	s.connMu.RUnlock()
	for _, entry := range entries {
		s.send(entry, frame)
	}
}

// webSocketURL derives the channel endpoint from the advertised base URL.
func (s *Server) webSocketURL() string {
	return "ws" + strings.TrimPrefix(s.emu.BaseURL(), "http") + "/ocast"
}

// ListenAndServe binds the HTTP listener, advertises its address, runs the
// SSDP responder and serves until the context ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("emulator: listen %s: %w", addr, err)
	}
	host := advertisedHost(ln.Addr())
	s.emu.SetBaseURL("http://" + host)
	s.logger.Infof("emulator: %s (%s) serving on http://%s", s.emu.cfg.FriendlyName, s.emu.cfg.UDN, host)

	if responder, err := newResponder(s.emu, s.logger); err != nil {
		s.logger.Errorf("emulator: ssdp responder unavailable: %v", err)
	} else {
		s.responder = responder
		go responder.serve()
	}

	s.httpSrv = &http.Server{Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.Serve(ln) }()
	select {
	case <-ctx.Done():
		s.Close()
		<-errCh
		return nil
	case err := <-errCh:
		s.Close()
		return err
	}
}

// Close tears both transports down.
func (s *Server) Close() {
	if s.responder != nil {
		s.responder.close()
	}
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

// advertisedHost rewrites a wildcard listen address to one other hosts can
// reach.
func advertisedHost(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	ip := tcp.IP
	if ip == nil || ip.IsUnspecified() {
		ip = outboundIP()
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(tcp.Port))
}

func outboundIP() net.IP {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP
}
