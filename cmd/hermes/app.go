package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/hermes-sub003/internal/manifest"
	"github.com/input-output-hk/hermes-sub003/internal/pkgmod"
)

// appCmd groups the application-package subcommands.
func appCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "app", Short: "build and sign application packages"}
	cmd.AddCommand(appPackageCmd())
	cmd.AddCommand(appSignCmd())
	return cmd
}

func appPackageCmd() *cobra.Command {
	pkg := &cobra.Command{
		Use:   "package",
		Short: "build an application package from a manifest, embedding every named module",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("manifest")
			out, _ := cmd.Flags().GetString("out")

			m, err := manifest.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			ap, err := pkgmod.BuildApplicationFromManifest(m, out, time.Now())
			if err != nil {
				return err
			}
			defer ap.Close()
			fmt.Printf("wrote application package %s (modules: %v)\n", out, ap.ModuleNames())
			return nil
		},
	}
	pkg.Flags().String("manifest", "", "path to the application manifest JSON")
	pkg.Flags().String("out", "app.hermes", "output package path")
	_ = pkg.MarkFlagRequired("manifest")
	return pkg
}

func appSignCmd() *cobra.Command {
	sign := &cobra.Command{
		Use:   "sign",
		Short: "sign an application package in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgPath, _ := cmd.Flags().GetString("package")
			keyPath, _ := cmd.Flags().GetString("key")
			certPath, _ := cmd.Flags().GetString("cert")

			priv, err := parsePrivateKey(keyPath)
			if err != nil {
				return err
			}
			cert, err := parseCertificate(certPath)
			if err != nil {
				return err
			}

			ap, err := pkgmod.OpenApplicationPackageForSigning(pkgPath)
			if err != nil {
				return err
			}
			defer ap.Close()
			if err := pkgmod.SignApplication(ap, priv, cert); err != nil {
				return err
			}
			fmt.Printf("signed %s\n", pkgPath)
			return nil
		},
	}
	sign.Flags().String("package", "", "path to the application package to sign")
	sign.Flags().String("key", "", "path to the PKCS#8 PEM private key")
	sign.Flags().String("cert", "", "path to the PEM signing certificate")
	_ = sign.MarkFlagRequired("package")
	_ = sign.MarkFlagRequired("key")
	_ = sign.MarkFlagRequired("cert")
	return sign
}
