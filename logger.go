package h2core

import (
	"log"
	"os"

	"github.com/valyala/fasthttp"
)

// defaultLogger is used whenever ClientOptions/ServerOptions leaves
// Logger nil.
var defaultLogger fasthttp.Logger = log.New(os.Stderr, "[h2core] ", log.LstdFlags)
