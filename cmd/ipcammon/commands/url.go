package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
)

var (
	urlParams    connection.Params
	showPassword bool
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the connection string for a camera",
	Long: `Build the connection string the monitor would open. Flags override the
configured camera; the password is masked unless --show-password is set.`,
	Example: `  # Connection string for the configured camera
  ipcammon url

  # From host, port and credentials
  ipcammon url --host 192.168.1.20 --cam-port 8080 --username admin --password secret

  # A full URL wins over host and port
  ipcammon url --url rtsp://192.168.1.20:554/stream1`,
	RunE: runURL,
}

func init() {
	rootCmd.AddCommand(urlCmd)

	urlCmd.Flags().StringVar(&urlParams.URL, "url", "", "full camera URL")
	urlCmd.Flags().StringVar(&urlParams.Host, "host", "", "camera host")
	urlCmd.Flags().StringVar(&urlParams.Port, "cam-port", "", "camera port")
	urlCmd.Flags().StringVar(&urlParams.Username, "username", "", "camera username")
	urlCmd.Flags().StringVar(&urlParams.Password, "password", "", "camera password")
	urlCmd.Flags().BoolVar(&showPassword, "show-password", false, "print the password in clear text")
}

func runURL(cmd *cobra.Command, args []string) error {
	params := urlParams
	if params == (connection.Params{}) {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		params = cameraParams(cfg)
	}

	conn, err := connection.Build(params)
	if err != nil {
		return err
	}
	if !showPassword {
		conn = connection.Redact(conn)
	}
	fmt.Fprintln(cmd.OutOrStdout(), conn)
	return nil
}
