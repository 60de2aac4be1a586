// Dev helper that mints an HS256 token accepted by the jwt identity
// provider. Run with the same secret the server is configured with.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	secret  = flag.String("secret", "change-me", "HMAC secret, must match auth.jwt.secret")
	subject = flag.String("sub", "user123", "token subject (user id)")
	issuer  = flag.String("iss", "", "token issuer (optional)")
	ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
)

func main() {
	flag.Parse()

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": *subject,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
	}
	if *issuer != "" {
		claims["iss"] = *issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(*secret))
	if err != nil {
		log.Fatal("failed to sign token:", err)
	}

	fmt.Println("JWT Token:")
	fmt.Println(signed)
	fmt.Println()
	fmt.Println("Use this token with:")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:8080/api/v1/example\n", signed)
}
