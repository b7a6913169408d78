// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/browser"

	"github.com/hashicorp/capauth/credentials"
	"github.com/hashicorp/capauth/oidc"
	"github.com/hashicorp/capauth/oidc/callback"
	"github.com/hashicorp/capauth/oidc/transaction"
)

// List of required configuration environment variables
const (
	clientID   = "OIDC_CLIENT_ID"
	issuer     = "OIDC_ISSUER"
	port       = "OIDC_PORT"
	attemptExp = "attemptExp"
)

const keyringService = "capauth-cli"

func envConfig() (map[string]interface{}, error) {
	const op = "envConfig"
	env := map[string]interface{}{
		clientID:   os.Getenv("OIDC_CLIENT_ID"),
		issuer:     os.Getenv("OIDC_ISSUER"),
		port:       os.Getenv("OIDC_PORT"),
		attemptExp: time.Duration(2 * time.Minute),
	}
	for k, v := range env {
		switch t := v.(type) {
		case string:
			if t == "" {
				return nil, fmt.Errorf("%s: %s is empty", op, k)
			}
		case time.Duration:
			if t == 0 {
				return nil, fmt.Errorf("%s: %s is empty", op, k)
			}
		default:
			return nil, fmt.Errorf("%s: %s is an unhandled type %T", op, k, t)
		}
	}
	return env, nil
}

func main() {
	useImplicit := flag.Bool("implicit", false, "use the implicit flow")
	maxAge := flag.Int("max-age", -1, "max age of user authentication in seconds")
	scopes := flag.String("scopes", "", "comma separated list of additional scopes to requests")
	discover := flag.Bool("discover", false, "discover the provider's endpoints")
	forceLogin := flag.Bool("login", false, "login even when stored credentials are valid")
	logout := flag.Bool("logout", false, "revoke and remove the stored credentials")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	env, err := envConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n", err)
		return
	}
	level := hclog.Warn
	if *debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "capauth-cli", Level: level, Output: os.Stderr})

	// handle ctrl-c while waiting for the callback
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt)
	defer signal.Stop(sigintCh)

	ctx, cancel := context.WithTimeout(context.Background(), env[attemptExp].(time.Duration))
	defer cancel()
	go func() {
		select {
		case <-sigintCh:
			fmt.Fprintf(os.Stderr, "Interrupted\n")
			cancel()
		case <-ctx.Done():
		}
	}()

	var optScopes []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			optScopes = append(optScopes, s)
		}
	}
	redirectURL := fmt.Sprintf("http://localhost:%s/callback", env[port].(string))
	configOptions := []oidc.Option{oidc.WithScopes(append([]string{"openid", "profile", "email", "offline_access"}, optScopes...)...)}
	if *maxAge >= 0 {
		configOptions = append(configOptions, oidc.WithMaxAge(time.Duration(*maxAge)*time.Second))
	}
	pc, err := oidc.NewConfig(env[issuer].(string), env[clientID].(string), redirectURL, configOptions...)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	if *discover {
		if err := oidc.Discover(ctx, pc); err != nil {
			fmt.Fprint(os.Stderr, err.Error())
			return
		}
	}
	p, err := oidc.NewProvider(pc, oidc.WithLogger(logger.Named("provider")))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	storage, err := credentials.NewKeyringStorage(keyringService)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	m, err := credentials.NewManager(p, storage,
		credentials.WithStorageKey(pc.ClientID),
		credentials.WithLogger(logger.Named("credentials")),
		credentials.WithIDTokenValidation(p.ValidatorContext("")),
	)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	switch {
	case *logout:
		if err := m.Revoke(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error revoking credentials: %s\n", err)
			return
		}
		fmt.Fprint(os.Stderr, "credentials revoked and removed\n")
		return
	case !*forceLogin && m.HasValid(time.Minute):
		creds, err := m.Credentials(ctx, credentials.WithMinTTL(time.Minute))
		if err == nil {
			fmt.Fprint(os.Stderr, "using stored credentials.\n")
			printCredentials(creds)
			printClaims(creds.IDToken)
			return
		}
		fmt.Fprintf(os.Stderr, "unable to use stored credentials, logging in: %s\n", err)
	}

	store := transaction.NewStore()
	successFn, successCh := success()
	errorFn, failedCh := failed()
	handler, err := callback.Handler(store, successFn, errorFn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating callback handler: %s", err)
		return
	}

	// Set up callback handler
	http.HandleFunc("/callback", handler)

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", env[port]))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	defer listener.Close()

	srvCh := make(chan error, 1)
	// Start local server
	go func() {
		err := http.Serve(listener, nil)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()

	ua := transaction.UserAgentFunc(func(_ context.Context, authURL string) error {
		// Open the default browser to the authorize URL.
		fmt.Fprintf(os.Stderr, "Complete the login via your OIDC provider. Launching browser to:\n\n    %s\n\n\n", authURL)
		if err := browser.OpenURL(authURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error attempting to automatically open browser: '%s'.\nPlease visit the authorization URL manually.", err)
		}
		return nil
	})
	wa, err := transaction.NewWebAuth(p, ua, transaction.WithStore(store), transaction.WithLogger(logger.Named("transaction")))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	loginOpts := []transaction.Option{transaction.WithResponseType(oidc.ResponseTypeCode)}
	if *useImplicit {
		// Browsers don't send the url fragment to the callback server, so
		// the implicit response has to be posted to it.
		loginOpts = []transaction.Option{
			transaction.WithResponseType(oidc.ResponseTypeIDToken | oidc.ResponseTypeToken),
			transaction.WithAuthURLOptions(oidc.WithParameters(map[string]string{"response_mode": "form_post"})),
		}
	}

	type loginResult struct {
		creds *oidc.Credentials
		err   error
	}
	loginCh := make(chan loginResult, 1)
	go func() {
		creds, err := wa.Login(ctx, loginOpts...)
		loginCh <- loginResult{creds, err}
	}()

	// Wait for the login to finish, the server to fail or the attempt to
	// expire.
	select {
	case err := <-srvCh:
		fmt.Fprintf(os.Stderr, "server closed with error: %s", err.Error())
		return
	case r := <-loginCh:
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %s\n", r.err)
			return
		}
		// drain the response of the callback handler
		select {
		case <-successCh:
		case <-failedCh:
		case <-time.After(time.Second):
		}
		if err := m.Store(r.creds); err != nil {
			fmt.Fprintf(os.Stderr, "error storing credentials: %s\n", err)
		}
		printCredentials(r.creds)
		printClaims(r.creds.IDToken)
		return
	}
}

func success() (callback.SuccessResponseFunc, <-chan struct{}) {
	doneCh := make(chan struct{}, 1)
	return func(state string, w http.ResponseWriter, req *http.Request) {
		defer func() {
			select {
			case doneCh <- struct{}{}:
			default:
			}
		}()
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(successHTML)); err != nil {
			fmt.Fprintf(os.Stderr, "error writing successful response: %s", err)
		}
	}, doneCh
}

func failed() (callback.ErrorResponseFunc, <-chan error) {
	const op = "failed"
	doneCh := make(chan error, 1)
	return func(state string, r *oidc.AuthenticationError, e error, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		defer func() {
			if _, err := w.Write([]byte(responseErr.Error())); err != nil {
				fmt.Fprintf(os.Stderr, "%s: error writing failed response: %s", op, err)
			}
			select {
			case doneCh <- responseErr:
			default:
			}
		}()

		if r != nil {
			responseErr = fmt.Errorf("%s: callback error from oidc provider: %s: %s", op, r.Code(), r.Description())
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		responseErr = fmt.Errorf("%s: callback error: %w", op, e)
		w.WriteHeader(http.StatusInternalServerError)
	}, doneCh
}

type respCredentials struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

func printCredentials(c *oidc.Credentials) {
	const op = "printCredentials"
	data, err := json.MarshalIndent(printableCredentials(c), "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "Credentials:%s\n", data)
}

// printableCredentials is needed because oidc.Credentials redacts the
// IDToken, AccessToken and RefreshToken
func printableCredentials(c *oidc.Credentials) respCredentials {
	return respCredentials{
		IDToken:      string(c.IDToken),
		AccessToken:  string(c.AccessToken),
		RefreshToken: string(c.RefreshToken),
		TokenType:    c.TokenType,
		Scope:        c.Scope,
		Expiry:       c.ExpiresAt,
	}
}

func printClaims(t oidc.IDToken) {
	const op = "printClaims"
	if t == "" {
		return
	}
	var tokenClaims map[string]interface{}
	if err := t.Claims(&tokenClaims); err != nil {
		fmt.Fprintf(os.Stderr, "IDToken claims: error parsing: %s", err)
		return
	}
	idData, err := json.MarshalIndent(tokenClaims, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "IDToken claims:%s\n", idData)
}

const successHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Authentication Succeeded</title>
</head>
<body>
<h1>Authentication Succeeded</h1>
<p>You can close this window and return to the command line.</p>
</body>
</html>
`
