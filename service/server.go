package service

import (
  "context"
  "math"
  "net"
  "net/http"
  "sync"

  "github.com/buger/jsonparser"
  "github.com/gorilla/websocket"
  "github.com/pkg/errors"
  "github.com/rs/zerolog"
  "golang.org/x/net/netutil"
)

const Endpoint = "/idmap2"

var (
  pathId               = []string{"id"}
  pathMethod           = []string{"method"}
  pathOverlayApkPath   = []string{"params", "overlayApkPath"}
  pathTargetApkPath    = []string{"params", "targetApkPath"}
  pathIgnoreCategories = []string{"params", "ignoreCategories"}
  pathUserId           = []string{"params", "userId"}

  paths = [][]string{pathId, pathMethod, pathOverlayApkPath, pathTargetApkPath, pathIgnoreCategories, pathUserId}
)

type request struct {
  id               int32
  method           string
  overlayApkPath   string
  targetApkPath    string
  ignoreCategories bool
  userId           int32
}

// WebSocket服务，每个请求一个goroutine，
// 同时处理的请求数不超过Workers
type Server struct {
  svc *Service

  cfg *Config

  logger zerolog.Logger

  upgrader websocket.Upgrader

  workers chan struct{}

  srv *http.Server
}

func NewServer(svc *Service, cfg *Config, logger zerolog.Logger) *Server {
  workers := cfg.Workers
  if workers < 1 {
    workers = 1
  }
  s := &Server{
    svc:     svc,
    cfg:     cfg,
    logger:  logger,
    workers: make(chan struct{}, workers),
  }
  s.srv = &http.Server{Handler: s.Handler()}
  return s
}

func (s *Server) Handler() http.Handler {
  mux := http.NewServeMux()
  mux.HandleFunc(Endpoint, s.serveWs)
  return mux
}

func (s *Server) ListenAndServe() error {
  l, e := net.Listen("tcp", s.cfg.Listen)
  if e != nil {
    return e
  }
  return s.Serve(l)
}

func (s *Server) Serve(l net.Listener) error {
  if s.cfg.MaxConns > 0 {
    l = netutil.LimitListener(l, s.cfg.MaxConns)
  }
  s.logger.Info().Str("addr", l.Addr().String()).Int("max_conns", s.cfg.MaxConns).Int("workers", cap(s.workers)).Msg("serve")
  e := s.srv.Serve(l)
  if e == http.ErrServerClosed {
    return nil
  }
  return e
}

func (s *Server) Shutdown(ctx context.Context) error {
  return s.srv.Shutdown(ctx)
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
  conn, e := s.upgrader.Upgrade(w, r, nil)
  if e != nil {
    s.logger.Warn().Err(e).Str("remote", r.RemoteAddr).Msg("upgrade")
    return
  }
  s.logger.Debug().Str("remote", r.RemoteAddr).Msg("connected")

  var wg sync.WaitGroup
  var wmu sync.Mutex
  defer func() {
    wg.Wait()
    conn.Close()
    s.logger.Debug().Str("remote", r.RemoteAddr).Msg("disconnected")
  }()
  for {
    _, data, e := conn.ReadMessage()
    if e != nil {
      if !websocket.IsCloseError(e, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
        s.logger.Debug().Err(e).Str("remote", r.RemoteAddr).Msg("read")
      }
      return
    }
    s.workers <- struct{}{}
    wg.Add(1)
    go func(data []byte) {
      defer func() {
        <-s.workers
        wg.Done()
      }()
      resp := s.handle(data)
      wmu.Lock()
      e := conn.WriteJSON(resp)
      wmu.Unlock()
      if e != nil {
        s.logger.Warn().Err(e).Str("remote", r.RemoteAddr).Msg("write")
      }
    }(data)
  }
}

func (s *Server) handle(data []byte) *Message {
  req, e := parseRequest(data)
  if e != nil {
    s.logger.Warn().Err(e).Msg("bad request")
    return &Message{Id: req.id, Method: req.method, Error: e.Error()}
  }
  resp := &Message{Id: req.id, Method: req.method}
  switch req.method {
  case MethodGetIdmapPath:
    p, e := s.svc.GetIdmapPath(req.overlayApkPath, req.userId)
    if e != nil {
      resp.Error = e.Error()
    } else {
      resp.Result = Result{"path": p}
    }
  case MethodRemoveIdmap:
    resp.Result = Result{"removed": s.svc.RemoveIdmap(req.overlayApkPath, req.userId)}
  case MethodCreateIdmap:
    p, _ := s.svc.CreateIdmap(req.targetApkPath, req.overlayApkPath, req.ignoreCategories, req.userId)
    resp.Result = Result{"path": p}
  default:
    resp.Error = "unknown method " + req.method
  }
  return resp
}

// 返回错误时req中已解析的id、method仍可用于响应
func parseRequest(data []byte) (*request, error) {
  req := &request{}
  var perr error
  jsonparser.EachKey(data, func(i int, v []byte, _ jsonparser.ValueType, e error) {
    if e != nil {
      if perr == nil {
        perr = e
      }
      return
    }
    var pe error
    switch i {
    case 0:
      req.id, pe = parseInt32(v)
    case 1:
      req.method, pe = jsonparser.ParseString(v)
    case 2:
      req.overlayApkPath, pe = jsonparser.ParseString(v)
    case 3:
      req.targetApkPath, pe = jsonparser.ParseString(v)
    case 4:
      req.ignoreCategories, pe = jsonparser.ParseBoolean(v)
    case 5:
      req.userId, pe = parseInt32(v)
    }
    if pe != nil && perr == nil {
      perr = errors.Wrapf(pe, "field %s", paths[i][len(paths[i])-1])
    }
  }, paths...)
  if perr != nil {
    return req, perr
  }
  if req.method == "" {
    return req, errors.New("missing method")
  }
  return req, nil
}

func parseInt32(v []byte) (int32, error) {
  n, e := jsonparser.ParseInt(v)
  if e != nil {
    return 0, e
  }
  if n < math.MinInt32 || n > math.MaxInt32 {
    return 0, errors.Errorf("%d out of int32 range", n)
  }
  return int32(n), nil
}
