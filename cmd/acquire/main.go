// One-shot snapshot grab for a single camera, for field debugging without
// the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/technosupport/ts-snapscout/internal/acquire"
	"github.com/technosupport/ts-snapscout/internal/capability"
	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/media"
	"github.com/technosupport/ts-snapscout/internal/probe"
	"github.com/technosupport/ts-snapscout/internal/soap"
)

func main() {
	host := flag.String("host", "", "device address (host or host:port)")
	name := flag.String("name", "", "device name for vendor matching")
	user := flag.String("user", "admin", "username")
	pass := flag.String("pass", "", "password")
	scheme := flag.String("scheme", "basic", "auth scheme (basic or digest)")
	out := flag.String("out", "", "output file (default snapshot_<host>.jpg)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	if *host == "" {
		flag.Usage()
		os.Exit(2)
	}

	authScheme := device.SchemeBasic
	if *scheme == "digest" {
		authScheme = device.SchemeDigest
	}

	dev := device.Device{
		Address: *host,
		Name:    *name,
		Credentials: []device.Credential{
			{Username: *user, Password: *pass, Scheme: authScheme},
		},
	}

	cat := catalog.Builtin()
	prober := probe.New(5 * time.Second)
	soapClient := soap.NewClient(10 * time.Second)
	resolver := media.NewResolver(soapClient)

	svc := acquire.NewService(cat, prober, resolver, acquire.NewFFmpegExtractor())
	svc.Capabilities = func(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential) []string {
		resp := capability.Query(ctx, soapClient, dev, prof, cred)
		return capability.CandidateEndpoints(dev, resp)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res := svc.Acquire(ctx, dev)
	if !res.OK {
		log.Fatalf("acquisition failed at %s: %s", res.Stage, res.Reason)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("snapshot_%s.jpg", dev.Host())
	}
	if err := os.WriteFile(path, res.Image, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
	fmt.Printf("ok stage=%s source=%s bytes=%d -> %s\n", res.Stage, res.Source, len(res.Image), path)
}
