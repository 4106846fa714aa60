package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/hermes-sub003/internal/manifest"
	"github.com/input-output-hk/hermes-sub003/internal/pkgmod"
)

// moduleCmd groups the module-package subcommands, following the teacher's
// testnetCmd/tokensCmd factory-function idiom: one *cobra.Command tree per
// noun, built and returned by a dedicated function.
func moduleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "module", Short: "build and sign module packages"}
	cmd.AddCommand(modulePackageCmd())
	cmd.AddCommand(moduleSignCmd())
	return cmd
}

func modulePackageCmd() *cobra.Command {
	pkg := &cobra.Command{
		Use:   "package",
		Short: "build a module package from a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, _ := cmd.Flags().GetString("manifest")
			out, _ := cmd.Flags().GetString("out")
			name, _ := cmd.Flags().GetString("name")

			m, err := manifest.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			mp, err := pkgmod.BuildModuleFromManifest(m, out, name, time.Now())
			if err != nil {
				return err
			}
			defer mp.Close()
			fmt.Printf("wrote module package %s\n", out)
			return nil
		},
	}
	pkg.Flags().String("manifest", "", "path to the module manifest JSON")
	pkg.Flags().String("out", "module.hermes", "output package path")
	pkg.Flags().String("name", "", "override the module name stamped into metadata")
	_ = pkg.MarkFlagRequired("manifest")
	return pkg
}

func moduleSignCmd() *cobra.Command {
	sign := &cobra.Command{
		Use:   "sign",
		Short: "sign a module package in place",
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

			mp, err := pkgmod.OpenModulePackageForSigning(pkgPath)
			if err != nil {
				return err
			}
			defer mp.Close()
			if err := pkgmod.SignModule(mp, priv, cert); err != nil {
				return err
			}
			fmt.Printf("signed %s\n", pkgPath)
			return nil
		},
	}
	sign.Flags().String("package", "", "path to the module package to sign")
	sign.Flags().String("key", "", "path to the PKCS#8 PEM private key")
	sign.Flags().String("cert", "", "path to the PEM signing certificate")
	_ = sign.MarkFlagRequired("package")
	_ = sign.MarkFlagRequired("key")
	_ = sign.MarkFlagRequired("cert")
	return sign
}
