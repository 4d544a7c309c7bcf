// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
)

// Request is a control request sent to a camera server.
type Request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Reply is the answer of a camera server to a control request.
type Reply struct {
	Msg    string        `json:"msg"` // "ok" or the error message
	Status string        `json:"status"`
	Config *Config       `json:"config,omitempty"`
	Info   *DetectorInfo `json:"info,omitempty"`
}

// server allows to control a camera over TCP.
type server struct {
	ctl net.Listener
	msg *log.Logger
	cam *Camera
}

// Serve serves control requests for the provided camera on addr.
func Serve(addr string, cam *Camera) error {
	srv, err := newServer(addr, cam)
	if err != nil {
		return fmt.Errorf("camera: could not create server: %w", err)
	}
	return srv.serve()
}

func newServer(addr string, cam *Camera) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create xpad-ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,
		msg: log.New(log.Writer(), "xpad-svc: ", 0),
		cam: cam,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not serve %v: %+v", conn.RemoteAddr(), err)
			continue
		}
	}
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		cam = srv.cam
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)

	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(enc, err)
			return fmt.Errorf("could not decode command request: %w", err)
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		switch strings.ToLower(req.Name) {
		case "configure":
			var set Settings
			err = json.Unmarshal(req.Args, &set)
			if err != nil {
				srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
				srv.reply(enc, err)
				continue
			}
			opts, err := set.Options()
			if err == nil {
				err = cam.Configure(opts...)
			}
			if err != nil {
				srv.msg.Printf("could not configure camera: %+v", err)
			}
			srv.reply(enc, err)

		case "start":
			err = cam.Start()
			if err != nil {
				srv.msg.Printf("could not start acquisition: %+v", err)
			}
			srv.reply(enc, err)

		case "stop":
			_ = cam.Stop()
			err = cam.Wait()
			if err != nil {
				srv.msg.Printf("acquisition failed: %+v", err)
			}
			srv.reply(enc, err)

		case "wait":
			err = cam.Wait()
			srv.reply(enc, err)

		case "status":
			cfg := cam.Config()
			srv.send(enc, Reply{Msg: "ok", Status: cam.Status().String(), Config: &cfg})

		case "info":
			info := cam.Info()
			srv.send(enc, Reply{Msg: "ok", Status: cam.Status().String(), Info: &info})

		case "quit":
			srv.reply(enc, nil)
			return nil

		default:
			srv.msg.Printf("unknown command name=%q, args=%q", req.Name, req.Args)
			srv.reply(enc, fmt.Errorf("unknown command %q", req.Name))
		}
	}
}

func (srv *server) reply(enc *json.Encoder, err error) {
	rep := Reply{Msg: "ok", Status: srv.cam.Status().String()}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}
	srv.send(enc, rep)
}

func (srv *server) send(enc *json.Encoder, rep Reply) {
	err := enc.Encode(rep)
	if err != nil {
		srv.msg.Printf("could not send reply: %+v", err)
	}
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}

// Client sends control requests to a camera server.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
}

// Dial connects to the camera server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("camera: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send sends the named request and waits for its reply.
// A reply carrying an error message is returned as an error.
func (c *Client) Send(name string, args interface{}) (Reply, error) {
	req := Request{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return Reply{}, fmt.Errorf("camera: could not encode %q arguments: %w", name, err)
		}
		req.Args = raw
	}

	err := c.enc.Encode(req)
	if err != nil {
		return Reply{}, fmt.Errorf("camera: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return rep, fmt.Errorf("camera: could not decode %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return rep, fmt.Errorf("camera: %s: %s", name, rep.Msg)
	}
	return rep, nil
}
