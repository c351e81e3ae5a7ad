package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nci/swathgrid/metrics"
	"github.com/nci/swathgrid/utils"
	gp "github.com/nci/swathgrid/worker/gdalprocess"
)

func init() {
	if _, ok := os.LookupEnv("GOMAXPROCS"); !ok {
		runtime.GOMAXPROCS(2)
	}

	utils.InitGdal()
}

func main() {
	debug := flag.Bool("debug", false, "verbose logging")
	sock := flag.String("sock", "", "unix socket path")
	configFile := flag.String("config", "", "JSON or YAML config file; defaults apply when empty")
	logDir := flag.String("log_dir", "", "write conversion records under this directory instead of stdout")
	flag.Parse()

	store, err := utils.NewConfigStore(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *configFile != "" {
		utils.WatchConfig(log.New(os.Stdout, "Info: ", log.Ldate|log.Ltime), log.New(os.Stderr, "Error: ", log.Ldate|log.Ltime), store)
	} else {
		// nothing to reload
		signal.Ignore(syscall.SIGHUP)
	}

	var logger metrics.Logger = metrics.NewStdoutLogger()
	if *logDir != "" {
		fl := metrics.NewFileLogger(*logDir, 0, 0, *debug)
		defer fl.Close()
		logger = fl
	}

	handler := gp.NewHandler(store, logger, *debug)
	defer handler.Close()

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: *sock, Net: "unix"})
	if err != nil {
		log.Fatal(err)
		return
	}
	defer os.Remove(*sock)

	log.Println("Listening on", *sock)

	for {
		conn, err := l.Accept()
		if err != nil {
			log.Fatal(err)
			return
		}

		if err := gp.ServeConn(conn, handler.Convert); err != nil {
			log.Println(err)
		}
	}
}
