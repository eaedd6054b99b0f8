// Package platform holds the per-OS provider strategies selected once at
// startup: service tables, service probes and the mail-server extension.
package platform

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	constants "hostmon/config"
	"hostmon/internal/config"
	"hostmon/internal/logger"
)

// Service names one monitored unit and its dashboard label
type Service = config.ServiceEntry

// LinuxServices is the default systemd table
var LinuxServices = []Service{
	{Name: "lsws", Display: "LiteSpeed Web Server"},
	{Name: "mariadb", Display: "MySQL (MariaDB)"},
	{Name: "aiapi", Display: "AI Apps Service (FastAPI)"},
	{Name: "elasticsearch", Display: "Elasticsearch"},
	{Name: "fastapi", Display: "FastAPI for XenForo Universal Search"},
}

// WindowsServices is the default Service Control Manager table. AudioSrv
// appears under both spellings; both map to the same label.
var WindowsServices = []Service{
	{Name: "Spooler", Display: "Print Spooler"},
	{Name: "W32Time", Display: "Windows Time"},
	{Name: "WinDefend", Display: "Windows Defender Antivirus Service"},
	{Name: "wuauserv", Display: "Windows Update"},
	{Name: "Dhcp", Display: "DHCP Client"},
	{Name: "Dnscache", Display: "DNS Client"},
	{Name: "LanmanServer", Display: "Server"},
	{Name: "LanmanWorkstation", Display: "Workstation"},
	{Name: "TermService", Display: "Remote Desktop Services"},
	{Name: "EventLog", Display: "Windows Event Log"},
	{Name: "PlugPlay", Display: "Plug and Play"},
	{Name: "RemoteRegistry", Display: "Remote Registry"},
	{Name: "RpcSs", Display: "Remote Procedure Call (RPC)"},
	{Name: "Themes", Display: "Themes"},
	{Name: "AudioSrv", Display: "Windows Audio"},
	{Name: "BITS", Display: "Background Intelligent Transfer Service"},
	{Name: "Winmgmt", Display: "Windows Management Instrumentation"},
	{Name: "SecurityHealthService", Display: "Windows Security Service"},
	{Name: "IKEEXT", Display: "IKE and AuthIP IPsec Keying Modules"},
	{Name: "PolicyAgent", Display: "IPsec Policy Agent"},
	{Name: "EventSystem", Display: "COM+ Event System"},
	{Name: "MpsSvc", Display: "Windows Firewall"},
	{Name: "SharedAccess", Display: "Internet Connection Sharing (ICS)"},
	{Name: "SamSs", Display: "Security Accounts Manager"},
	{Name: "SENS", Display: "System Event Notification Service"},
	{Name: "SessionEnv", Display: "Remote Desktop Configuration"},
	{Name: "ShellHWDetection", Display: "Shell Hardware Detection"},
	{Name: "gpsvc", Display: "Group Policy Client"},
	{Name: "NlaSvc", Display: "Network Location Awareness"},
	{Name: "Netlogon", Display: "Net Logon"},
	{Name: "Netman", Display: "Network Connections"},
	{Name: "WlanSvc", Display: "WLAN AutoConfig"},
	{Name: "Wcmsvc", Display: "Windows Connection Manager"},
	{Name: "iphlpsvc", Display: "IP Helper"},
	{Name: "Audiosrv", Display: "Windows Audio"},
	{Name: "AudioEndpointBuilder", Display: "Windows Audio Endpoint Builder"},
	{Name: "Appinfo", Display: "Application Information"},
	{Name: "Browser", Display: "Computer Browser"},
	{Name: "CryptSvc", Display: "Cryptographic Services"},
	{Name: "DcomLaunch", Display: "DCOM Server Process Launcher"},
	{Name: "dot3svc", Display: "Wired AutoConfig"},
	{Name: "EapHost", Display: "Extensible Authentication Protocol"},
	{Name: "fdPHost", Display: "Function Discovery Provider Host"},
	{Name: "FDResPub", Display: "Function Discovery Resource Publication"},
	{Name: "hkmsvc", Display: "Health Key and Certificate Management"},
	{Name: "HomeGroupListener", Display: "HomeGroup Listener"},
	{Name: "HomeGroupProvider", Display: "HomeGroup Provider"},
	{Name: "lmhosts", Display: "TCP/IP NetBIOS Helper"},
	{Name: "MSDTC", Display: "Distributed Transaction Coordinator"},
	{Name: "NcdAutoSetup", Display: "Network Connected Devices Auto-Setup"},
	{Name: "nsi", Display: "Network Store Interface Service"},
	{Name: "PeerDistSvc", Display: "BranchCache"},
	{Name: "PnrpAutoReg", Display: "PNRP Machine Name Publication Service"},
	{Name: "PNRPSvc", Display: "Peer Name Resolution Protocol"},
	{Name: "RpcLocator", Display: "Remote Procedure Call (RPC) Locator"},
	{Name: "RemoteAccess", Display: "Routing and Remote Access"},
	{Name: "Schedule", Display: "Task Scheduler"},
	{Name: "SSDPSRV", Display: "SSDP Discovery"},
	{Name: "TrkWks", Display: "Distributed Link Tracking Client"},
	{Name: "WinHttpAutoProxySvc", Display: "WinHTTP Web Proxy Auto-Discovery Service"},
	{Name: "WSearch", Display: "Windows Search"},
}

// ExchangeServices is the mail-server extension table
var ExchangeServices = []Service{
	{Name: "MSExchangeADTopology", Display: "Microsoft Exchange Active Directory Topology"},
	{Name: "MSExchangeTransport", Display: "Microsoft Exchange Transport"},
	{Name: "MSExchangeIS", Display: "Microsoft Exchange Information Store"},
	{Name: "MSExchangeMailboxAssistants", Display: "Microsoft Exchange Mailbox Assistants"},
	{Name: "MSExchangeMailboxReplication", Display: "Microsoft Exchange Mailbox Replication"},
	{Name: "MSExchangeIMAP4", Display: "Microsoft Exchange IMAP4"},
	{Name: "MSExchangePOP3", Display: "Microsoft Exchange POP3"},
	{Name: "MSExchangeServiceHost", Display: "Microsoft Exchange Service Host"},
	{Name: "MSExchangeUM", Display: "Microsoft Exchange Unified Messaging"},
	{Name: "MSExchangeThrottling", Display: "Microsoft Exchange Throttling"},
	{Name: "MSExchangeAB", Display: "Microsoft Exchange Address Book"},
	{Name: "MSExchangeRPC", Display: "Microsoft Exchange RPC Client Access"},
	{Name: "MSExchangeDelivery", Display: "Microsoft Exchange Mailbox Transport Delivery"},
	{Name: "MSExchangeSubmission", Display: "Microsoft Exchange Mailbox Transport Submission"},
	{Name: "MSExchangeHM", Display: "Microsoft Exchange Health Manager"},
	{Name: "MSExchangeFrontendTransport", Display: "Microsoft Exchange Frontend Transport"},
	{Name: "MSExchangeEdgeSync", Display: "Microsoft Exchange EdgeSync"},
}

// ServiceProbe reports whether one service is running. Implementations
// must honor ctx cancellation.
type ServiceProbe func(ctx context.Context, name string) (bool, error)

// ServiceTable checks a fixed list of services concurrently under one
// batch deadline
type ServiceTable struct {
	services []Service
	probe    ServiceProbe
	timeout  time.Duration
	limit    int
}

// NewServiceTable creates a table. A non-positive timeout disables the
// batch deadline.
func NewServiceTable(services []Service, probe ServiceProbe, timeout time.Duration) *ServiceTable {
	return &ServiceTable{
		services: services,
		probe:    probe,
		timeout:  timeout,
		limit:    constants.MAX_SERVICE_CHECKS,
	}
}

// Len returns the number of entries, duplicates included
func (t *ServiceTable) Len() int {
	return len(t.services)
}

// Check maps display name to running state. A failed or timed-out probe
// reports false; the table as a whole never fails. Labels shared by two
// entries report true if either is running.
func (t *ServiceTable) Check(ctx context.Context) (map[string]bool, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	running := make([]bool, len(t.services))

	var g errgroup.Group
	g.SetLimit(t.limit)
	for i, svc := range t.services {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ok, err := t.probe(ctx, svc.Name)
			if err != nil {
				logger.Debug("Service %s query failed: %v", svc.Name, err)
				return nil
			}
			running[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]bool, len(t.services))
	for i, svc := range t.services {
		status[svc.Display] = status[svc.Display] || running[i]
	}
	return status, nil
}

// withDefaults returns configured when non-empty, otherwise fallback
func withDefaults(configured, fallback []Service) []Service {
	if len(configured) > 0 {
		return configured
	}
	return fallback
}
