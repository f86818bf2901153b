package service

import (
  "sync"
  "sync/atomic"

  "github.com/gorilla/websocket"
  "github.com/pkg/errors"
)

var ErrClosed = errors.New("client closed")

type Client struct {
  conn *websocket.Conn

  // 每次请求自增
  lastMessageId int32

  // 非零表示已经关闭
  closed int32

  // 广播，通知等待响应的Call返回
  closeChan chan struct{}

  wmu sync.Mutex

  // 等待响应的请求（int32-->chan *Message），key是Message.Id
  pending sync.Map
}

// url形如ws://127.0.0.1:9611/idmap2
func Dial(url string) (*Client, error) {
  conn, _, e := websocket.DefaultDialer.Dial(url, nil)
  if e != nil {
    return nil, errors.Wrapf(e, "dial %s", url)
  }
  c := &Client{conn: conn, closeChan: make(chan struct{})}
  go c.read()
  return c, nil
}

func (c *Client) read() {
  for {
    msg := &Message{}
    if e := c.conn.ReadJSON(msg); e != nil {
      c.Close()
      return
    }
    if v, ok := c.pending.Load(msg.Id); ok {
      c.pending.Delete(msg.Id)
      v.(chan *Message) <- msg
    }
  }
}

// 发送请求并等待响应，响应中的Error不为空时返回错误
func (c *Client) Call(method string, param Param) (*Message, error) {
  if method == "" {
    return nil, errors.New("empty method")
  }
  if atomic.LoadInt32(&c.closed) != 0 {
    return nil, ErrClosed
  }
  id := atomic.AddInt32(&c.lastMessageId, 1)
  ch := make(chan *Message, 1)
  c.pending.Store(id, ch)
  c.wmu.Lock()
  e := c.conn.WriteJSON(&Message{Id: id, Method: method, Param: param})
  c.wmu.Unlock()
  if e != nil {
    c.pending.Delete(id)
    c.Close()
    return nil, errors.Wrap(e, method)
  }
  select {
  case msg := <-ch:
    if msg.Error != "" {
      return msg, errors.Errorf("%s: %s", method, msg.Error)
    }
    return msg, nil
  case <-c.closeChan:
    return nil, ErrClosed
  }
}

func (c *Client) GetIdmapPath(overlayApkPath string, userID int32) (string, error) {
  msg, e := c.Call(MethodGetIdmapPath, Param{"overlayApkPath": overlayApkPath, "userId": userID})
  if e != nil {
    return "", e
  }
  p, _ := msg.Result["path"].(string)
  return p, nil
}

func (c *Client) RemoveIdmap(overlayApkPath string, userID int32) (bool, error) {
  msg, e := c.Call(MethodRemoveIdmap, Param{"overlayApkPath": overlayApkPath, "userId": userID})
  if e != nil {
    return false, e
  }
  ok, _ := msg.Result["removed"].(bool)
  return ok, nil
}

// 创建失败时返回("", false, nil)
func (c *Client) CreateIdmap(targetApkPath, overlayApkPath string, ignoreCategories bool, userID int32) (string, bool, error) {
  msg, e := c.Call(MethodCreateIdmap, Param{
    "targetApkPath":    targetApkPath,
    "overlayApkPath":   overlayApkPath,
    "ignoreCategories": ignoreCategories,
    "userId":           userID,
  })
  if e != nil {
    return "", false, e
  }
  p, _ := msg.Result["path"].(string)
  return p, p != "", nil
}

func (c *Client) Close() {
  // 防止Close被多次调用
  if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
    return
  }
  close(c.closeChan)
  c.conn.Close()
}
